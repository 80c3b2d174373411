// Package backend defines the contract shared by the mock ledger and the
// remote Alpha-Boost service, the failure type both report, and the
// journal that records every call.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alphaboost/console/internal/model"
)

// Backend is one trading backend as seen by a single client session.
// app is the caller's identity (the app name).
type Backend interface {
	RegisterApp(ctx context.Context, app string) (*model.AppRegistration, error)
	DeleteApp(ctx context.Context, app string) (*model.AppDeletion, error)
	CreateTransaction(ctx context.Context, app string, req model.TransactionRequest) (*model.TransactionCreated, error)
	ListTransactions(ctx context.Context, app string) (*model.TransactionList, error)
	GetPrediction(ctx context.Context, app, ticker string) (*model.Prediction, error)

	// MostTradedSymbol returns nil when the session has no transactions.
	MostTradedSymbol(ctx context.Context, app string) (*model.Popularity, error)
}

// Provider hands out the Backend serving a session.
type Provider interface {
	ForSession(session string) Backend
}

type shared struct{ b Backend }

func (s shared) ForSession(string) Backend { return s.b }

// Shared returns a Provider that serves every session with b.
func Shared(b Backend) Provider { return shared{b: b} }

// Kind classifies a Failure.
type Kind string

const (
	KindUnavailable   Kind = "service_unavailable"
	KindEmptyResponse Kind = "empty_response"
	KindInvalidJSON   Kind = "invalid_json"
	KindUpstream      Kind = "upstream_error"
)

// Failure is the error variant of a backend result. Status is the HTTP
// status the caller should see. Body, when set, is the upstream's own
// JSON error body and is passed through verbatim.
type Failure struct {
	Kind    Kind
	Message string
	Status  int
	Body    json.RawMessage
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return fmt.Sprintf("backend: %s (status %d)", f.Kind, f.Status)
	}
	return fmt.Sprintf("backend: %s (status %d): %s", f.Kind, f.Status, f.Message)
}

// Payload is the JSON body to send to the caller.
func (f *Failure) Payload() json.RawMessage {
	if len(f.Body) > 0 {
		return f.Body
	}
	data, _ := json.Marshal(ErrorBody{Error: string(f.Kind), Details: f.Message})
	return data
}

// ErrorBody is the {error, details?} response shape.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// AsFailure unwraps err to a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
