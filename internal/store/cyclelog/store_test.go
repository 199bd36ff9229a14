package cyclelog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "cycles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	trace := uuid.NewString()

	_, err := s.Insert(ctx, Record{
		TraceID:   trace,
		Timestamp: time.Now().UnixMilli(),
		Auth:      "tok-a",
		StockCode: "600547",
		StockName: "山东黄金",
		Decision:  "enter",
		Price:     decimal.NewFromFloat(28.35),
		Signals:   map[string]bool{"kdj_golden_cross": true, "rsi_oversold": false},
		Reasons:   []string{"kdj_golden_cross"},
	})
	require.NoError(t, err)

	_, err = s.Insert(ctx, Record{
		TraceID:   trace,
		Timestamp: time.Now().UnixMilli() + 1,
		Auth:      "tok-a",
		StockCode: "600547",
		Decision:  "exit",
		Price:     decimal.NewFromFloat(29.10),
		Reasons:   []string{"profit_callback"},
		Profit:    decimal.NewFromFloat(75.0),
	})
	require.NoError(t, err)

	list, err := s.List(ctx, Query{Auth: "tok-a"})
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Newest first.
	assert.Equal(t, "exit", list[0].Decision)
	assert.True(t, list[0].Profit.Equal(decimal.NewFromFloat(75.0)))
	assert.Equal(t, "enter", list[1].Decision)
	assert.True(t, list[1].Signals["kdj_golden_cross"])
	assert.Equal(t, []string{"kdj_golden_cross"}, list[1].Reasons)
	assert.True(t, list[1].Price.Equal(decimal.NewFromFloat(28.35)))
}

func TestListFiltersByDecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, d := range []string{"none", "none", "enter"} {
		_, err := s.Insert(ctx, Record{Auth: "tok-b", StockCode: "600547", Decision: d})
		require.NoError(t, err)
	}

	list, err := s.List(ctx, Query{Auth: "tok-b", Decision: "none"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	total, err := s.Count(ctx, Query{Auth: "tok-b"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestListByTraceIDOrdersOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	trace := uuid.NewString()

	base := time.Now().UnixMilli()
	for i, d := range []string{"none", "enter", "exit"} {
		_, err := s.Insert(ctx, Record{
			TraceID: trace, Timestamp: base + int64(i),
			Auth: "tok-c", StockCode: "601899", Decision: d,
		})
		require.NoError(t, err)
	}
	// Unrelated trace must not leak in.
	_, err := s.Insert(ctx, Record{TraceID: uuid.NewString(), Auth: "tok-c", StockCode: "601899", Decision: "none"})
	require.NoError(t, err)

	list, err := s.ListByTraceID(ctx, trace, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "none", list[0].Decision)
	assert.Equal(t, "exit", list[2].Decision)
}

func TestSkipReasonRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, Record{
		Auth: "tok-d", StockCode: "600547", Decision: "skip", SkipReason: "outside_window",
	})
	require.NoError(t, err)

	list, err := s.List(ctx, Query{Auth: "tok-d"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "outside_window", list[0].SkipReason)
}
