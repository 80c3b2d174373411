// Package console implements the alphactl commands against a running
// gateway: app registration, trading with a prediction preview, history,
// portfolio, predictions, popularity and the call journal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/alphaboost/console/internal/gateway"
	"github.com/alphaboost/console/internal/model"
	"github.com/alphaboost/console/internal/order"
	"github.com/alphaboost/console/internal/prediction"
	"github.com/alphaboost/console/internal/upstream"
)

// AppPrefix starts every generated app name.
const AppPrefix = "RobinTrade-"

// ErrDeclined is returned when the user does not confirm a trade.
var ErrDeclined = errors.New("console: trade not confirmed")

// DefaultAppName returns a fresh RobinTrade-<8 hex> identity.
func DefaultAppName() string {
	return AppPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Console runs commands for one app identity.
type Console struct {
	client *upstream.Client
	app    string
	in     *bufio.Reader
	out    io.Writer
}

// New creates a console talking to the gateway at gatewayURL. An empty
// session lets the gateway key the session on the app name.
func New(gatewayURL, app, session string, in io.Reader, out io.Writer, opts ...upstream.Option) *Console {
	opts = append([]upstream.Option{upstream.WithIdentityHeader(gateway.HeaderAppName)}, opts...)
	if session != "" {
		opts = append(opts, upstream.WithHeader(gateway.HeaderSession, session))
	}
	return &Console{
		client: upstream.New(strings.TrimRight(gatewayURL, "/")+"/api", opts...),
		app:    app,
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// App is the identity this console sends.
func (c *Console) App() string { return c.app }

func (c *Console) Register(ctx context.Context) error {
	reg, err := c.client.RegisterApp(ctx, c.app)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Registered %s\n", reg.AppUsername)
	return nil
}

func (c *Console) Delete(ctx context.Context) error {
	del, err := c.client.DeleteApp(ctx, c.app)
	if err != nil {
		return err
	}
	if del.Deleted {
		fmt.Fprintf(c.out, "Deleted %s\n", del.AppUsername)
	} else {
		fmt.Fprintf(c.out, "%s was not deleted\n", del.AppUsername)
	}
	return nil
}

// Trade validates the ticket, shows the prediction for the ticker and,
// unless yes is set, asks before submitting.
func (c *Console) Trade(ctx context.Context, side, ticker, qty, price string, yes bool) error {
	req, err := order.Parse(ticker, side, qty, price)
	if err != nil {
		return err
	}

	p, err := c.client.GetPrediction(ctx, c.app, req.Symbol)
	if err != nil {
		return err
	}
	c.printPrediction(p)

	if !yes {
		fmt.Fprintf(c.out, "Submit %s %s %s @ %s? [y/N] ", req.Side, req.Qty, req.Symbol, req.Price)
		line, _ := c.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer != "y" && answer != "yes" {
			return ErrDeclined
		}
	}

	created, err := c.client.CreateTransaction(ctx, c.app, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Transaction #%d: %s %s %s @ %s (total %s)\n",
		created.ID, req.Side, req.Qty, req.Symbol, req.Price, req.Qty.Mul(req.Price))
	return nil
}

func (c *Console) Predict(ctx context.Context, ticker string) error {
	symbol, err := order.NormalizeTicker(ticker)
	if err != nil {
		return err
	}
	p, err := c.client.GetPrediction(ctx, c.app, symbol)
	if err != nil {
		return err
	}
	c.printPrediction(p)
	return nil
}

func (c *Console) printPrediction(p *model.Prediction) {
	fmt.Fprintf(c.out, "%s  %s %.0f%% up  %s %.2f\n",
		p.Ticker, prediction.Direction(*p), p.ProbUp*100, prediction.Conviction(*p), p.Strength)
}

func (c *Console) Transactions(ctx context.Context) error {
	list, err := c.client.ListTransactions(ctx, c.app)
	if err != nil {
		return err
	}
	if len(list.Transactions) == 0 {
		fmt.Fprintln(c.out, "No transactions yet")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSYMBOL\tSIDE\tQTY\tPRICE\tTIME")
	for _, t := range list.Transactions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Symbol, t.Side, t.Qty, t.Price, t.TS.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// Portfolio prints open positions followed by the trade history.
func (c *Console) Portfolio(ctx context.Context) error {
	var p model.Portfolio
	if err := c.client.Do(ctx, http.MethodGet, "/portfolio", c.app, nil, &p); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	if len(p.Positions) == 0 {
		fmt.Fprintln(tw, "No open positions")
	} else {
		fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG PRICE\tTOTAL COST\tTRADES")
		for _, pos := range p.Positions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
				pos.Symbol, pos.Qty, pos.AvgPrice.StringFixed(2), pos.TotalCost.StringFixed(2), pos.Trades)
		}
	}

	if len(p.History) > 0 {
		fmt.Fprintln(tw, "")
		fmt.Fprintln(tw, "ID\tSYMBOL\tSIDE\tQTY\tPRICE\tTOTAL")
		for _, l := range p.History {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				l.ID, l.Symbol, l.Side, l.Qty, l.Price, l.Total.StringFixed(2))
		}
	}
	return tw.Flush()
}

func (c *Console) Popular(ctx context.Context) error {
	var pop *model.Popularity
	if err := c.client.Do(ctx, http.MethodGet, "/stats/most-traded", c.app, nil, &pop); err != nil {
		return err
	}
	if pop == nil {
		fmt.Fprintln(c.out, "No trades yet")
		return nil
	}
	fmt.Fprintf(c.out, "Most traded: %s (%d trades)\n", pop.Ticker, pop.Count)
	return nil
}

// Logs prints the session journal, or clears it.
func (c *Console) Logs(ctx context.Context, clearLogs bool) error {
	if clearLogs {
		if err := c.client.Do(ctx, http.MethodDelete, "/logs", c.app, nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Logs cleared")
		return nil
	}

	var logs []model.LogEntry
	if err := c.client.Do(ctx, http.MethodGet, "/logs", c.app, nil, &logs); err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Fprintln(c.out, "No calls logged")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMETHOD\tENDPOINT\tSTATUS\tRESPONSE")
	for _, e := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.Timestamp.Format("15:04:05.000"), e.Method, e.Endpoint, e.Status, e.Response)
	}
	return tw.Flush()
}
