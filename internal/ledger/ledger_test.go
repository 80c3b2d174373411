package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphaboost/console/internal/model"
	"github.com/alphaboost/console/internal/prediction"
	"github.com/alphaboost/console/internal/store"
)

const app = "RobinTrade-test"

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	return New("session-1", store.NewMemoryStore(), prediction.NewTable(), 0)
}

func trade(symbol, side string, qty, price int64) model.TransactionRequest {
	return model.TransactionRequest{
		Symbol: symbol,
		Side:   model.Side(side),
		Qty:    decimal.NewFromInt(qty),
		Price:  decimal.NewFromInt(price),
	}
}

func TestRegisterAndDeleteApp(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	reg, err := l.RegisterApp(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, app, reg.AppUsername)

	del, err := l.DeleteApp(ctx, app)
	require.NoError(t, err)
	assert.True(t, del.Deleted)
	assert.Equal(t, app, del.AppUsername)
}

func TestCreateTransaction_IDsFollowInsertionOrder(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	symbols := []string{"AAPL", "TSLA", "MSFT", "AAPL", "NVDA"}
	for i, s := range symbols {
		created, err := l.CreateTransaction(ctx, app, trade(s, "buy", 1, 100))
		require.NoError(t, err)
		assert.Equal(t, i+1, created.ID)
	}

	list, err := l.ListTransactions(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, app, list.AppUsername)
	require.Len(t, list.Transactions, len(symbols))
	for i, tx := range list.Transactions {
		assert.Equal(t, i+1, tx.ID)
		assert.Equal(t, symbols[i], tx.Symbol)
	}
}

func TestCreateTransaction_NormalizesCase(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.CreateTransaction(ctx, app, trade("aapl", "SELL", 2, 10))
	require.NoError(t, err)

	list, err := l.ListTransactions(ctx, app)
	require.NoError(t, err)
	require.Len(t, list.Transactions, 1)
	assert.Equal(t, "AAPL", list.Transactions[0].Symbol)
	assert.Equal(t, model.SideSell, list.Transactions[0].Side)
	assert.False(t, list.Transactions[0].TS.IsZero())
}

func TestListTransactions_ReadYourWrites(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	for i := 0; i < 3; i++ {
		_, err := l.CreateTransaction(ctx, app, trade("TSLA", "buy", 1, 1))
		require.NoError(t, err)
		list, err := l.ListTransactions(ctx, app)
		require.NoError(t, err)
		assert.Len(t, list.Transactions, i+1)
	}
}

func TestDeleteApp_KeepsTransactions(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.CreateTransaction(ctx, app, trade("AAPL", "buy", 1, 1))
	require.NoError(t, err)
	_, err = l.DeleteApp(ctx, app)
	require.NoError(t, err)

	list, err := l.ListTransactions(ctx, app)
	require.NoError(t, err)
	assert.Len(t, list.Transactions, 1)
}

func TestGetPrediction_UnknownTickerDefaults(t *testing.T) {
	p, err := newLedger(t).GetPrediction(context.Background(), app, "xyz")
	require.NoError(t, err)
	assert.Equal(t, model.Prediction{Ticker: "XYZ", ProbUp: 0.5, Strength: 0.5}, *p)
}

func TestMostTradedSymbol_Empty(t *testing.T) {
	pop, err := newLedger(t).MostTradedSymbol(context.Background(), app)
	require.NoError(t, err)
	assert.Nil(t, pop)
}

func TestMostTradedSymbol_TieGoesToFirstInserted(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	for _, s := range []string{"AAPL", "TSLA", "TSLA", "AAPL", "TSLA", "AAPL"} {
		_, err := l.CreateTransaction(ctx, app, trade(s, "buy", 1, 1))
		require.NoError(t, err)
	}

	pop, err := l.MostTradedSymbol(ctx, app)
	require.NoError(t, err)
	require.NotNil(t, pop)
	assert.Equal(t, model.Popularity{Ticker: "AAPL", Count: 3}, *pop)
}

func TestLatency_IsCancellable(t *testing.T) {
	l := New("session-1", store.NewMemoryStore(), prediction.NewTable(), time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := l.RegisterApp(ctx, app)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLatency_DelaysResponse(t *testing.T) {
	l := New("session-1", store.NewMemoryStore(), prediction.NewTable(), 20*time.Millisecond)

	start := time.Now()
	_, err := l.GetPrediction(context.Background(), app, "AAPL")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestProvider_SessionsShareStoreButNotData(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(store.NewMemoryStore(), prediction.NewTable(), 0)

	_, err := p.ForSession("a").CreateTransaction(ctx, app, trade("AAPL", "buy", 1, 1))
	require.NoError(t, err)

	again, err := p.ForSession("a").ListTransactions(ctx, app)
	require.NoError(t, err)
	assert.Len(t, again.Transactions, 1)

	other, err := p.ForSession("b").ListTransactions(ctx, app)
	require.NoError(t, err)
	assert.Empty(t, other.Transactions)
}
