package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alphaboost/console/internal/metrics"
	"github.com/alphaboost/console/internal/model"
)

// LogSink receives journal entries.
type LogSink interface {
	AppendLog(ctx context.Context, session string, entry *model.LogEntry) error
}

// Observer is notified after each entry is written.
type Observer func(session string, entry model.LogEntry)

// Journal wraps a Backend and records exactly one LogEntry per call, on
// success and failure alike.
type Journal struct {
	next     Backend
	sink     LogSink
	session  string
	observer Observer
	now      func() time.Time
}

// NewJournal wraps next. observer may be nil.
func NewJournal(next Backend, sink LogSink, session string, observer Observer) *Journal {
	return &Journal{
		next:     next,
		sink:     sink,
		session:  session,
		observer: observer,
		now:      time.Now,
	}
}

// call describes the request side of a journal entry.
type call struct {
	method   string
	endpoint string
	app      string
	body     any
	okStatus int
}

type snapshot struct {
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body,omitempty"`
}

func record[T any](ctx context.Context, j *Journal, c call, fn func(context.Context) (T, error)) (T, error) {
	result, err := fn(ctx)

	status := c.okStatus
	var response json.RawMessage
	if err != nil {
		if f, ok := AsFailure(err); ok {
			status = f.Status
			response = f.Payload()
		} else {
			status = 0 // no response reached the caller
			response, _ = json.Marshal(ErrorBody{Error: err.Error()})
		}
	} else {
		response, _ = json.Marshal(result)
	}

	request, _ := json.Marshal(snapshot{
		Headers: map[string]string{"X-App-Name": c.app},
		Body:    c.body,
	})

	entry := model.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: j.now().UTC(),
		Method:    c.method,
		Endpoint:  c.endpoint,
		Request:   request,
		Response:  response,
		Status:    status,
	}

	// The journal must not turn a finished call into a failure.
	if werr := j.sink.AppendLog(context.WithoutCancel(ctx), j.session, &entry); werr != nil {
		slog.Warn("journal append failed", "session", j.session, "endpoint", c.endpoint, "err", werr)
	} else {
		metrics.JournalEntries.WithLabelValues(c.method, strconv.Itoa(status)).Inc()
		if j.observer != nil {
			j.observer(j.session, entry)
		}
	}

	return result, err
}

func (j *Journal) RegisterApp(ctx context.Context, app string) (*model.AppRegistration, error) {
	c := call{method: http.MethodPost, endpoint: "/apps", app: app, okStatus: http.StatusCreated}
	return record(ctx, j, c, func(ctx context.Context) (*model.AppRegistration, error) {
		return j.next.RegisterApp(ctx, app)
	})
}

func (j *Journal) DeleteApp(ctx context.Context, app string) (*model.AppDeletion, error) {
	c := call{method: http.MethodDelete, endpoint: "/apps", app: app, okStatus: http.StatusOK}
	return record(ctx, j, c, func(ctx context.Context) (*model.AppDeletion, error) {
		return j.next.DeleteApp(ctx, app)
	})
}

func (j *Journal) CreateTransaction(ctx context.Context, app string, req model.TransactionRequest) (*model.TransactionCreated, error) {
	c := call{method: http.MethodPost, endpoint: "/apps/transactions", app: app, body: req, okStatus: http.StatusCreated}
	return record(ctx, j, c, func(ctx context.Context) (*model.TransactionCreated, error) {
		return j.next.CreateTransaction(ctx, app, req)
	})
}

func (j *Journal) ListTransactions(ctx context.Context, app string) (*model.TransactionList, error) {
	c := call{method: http.MethodGet, endpoint: "/apps/transactions", app: app, okStatus: http.StatusOK}
	return record(ctx, j, c, func(ctx context.Context) (*model.TransactionList, error) {
		return j.next.ListTransactions(ctx, app)
	})
}

func (j *Journal) GetPrediction(ctx context.Context, app, ticker string) (*model.Prediction, error) {
	c := call{method: http.MethodGet, endpoint: "/predictions/" + ticker, app: app, okStatus: http.StatusOK}
	return record(ctx, j, c, func(ctx context.Context) (*model.Prediction, error) {
		return j.next.GetPrediction(ctx, app, ticker)
	})
}

func (j *Journal) MostTradedSymbol(ctx context.Context, app string) (*model.Popularity, error) {
	c := call{method: http.MethodGet, endpoint: "/stats/most-traded", app: app, okStatus: http.StatusOK}
	return record(ctx, j, c, func(ctx context.Context) (*model.Popularity, error) {
		return j.next.MostTradedSymbol(ctx, app)
	})
}
