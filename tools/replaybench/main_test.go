package main

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/lt-indexer/internal/reconcile"
	"github.com/feral-file/lt-indexer/internal/store"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"microseconds", 250 * time.Microsecond, "250µs"},
		{"milliseconds", 500 * time.Millisecond, "500ms"},
		{"seconds", 2500 * time.Millisecond, "2.50s"},
		{"minutes", 3*time.Minute + 15*time.Second, "3m 15s"},
		{"hours", 2*time.Hour + 30*time.Minute, "2h 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}

func TestPercentageString(t *testing.T) {
	assert.Equal(t, "0.00%", percentageString(1, 0))
	assert.Equal(t, "50.00%", percentageString(1, 2))
	assert.Equal(t, "33.33%", percentageString(1, 3))
	assert.Equal(t, "100.00%", percentageString(7, 7))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "N/A", formatRate(10, 0))
	assert.Equal(t, "5.00/s", formatRate(10, 2*time.Second))
	assert.Equal(t, "0.50/s", formatRate(1, 2*time.Second))
}

func TestStatusEmoji(t *testing.T) {
	assert.Equal(t, "⚪", statusEmoji(0, 0, 0))
	assert.Equal(t, "✅", statusEmoji(3, 0, 0))
	assert.Equal(t, "🟡", statusEmoji(3, 1, 0))
	assert.Equal(t, "❌", statusEmoji(3, 1, 1))
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x1111…1111", shortAddress("0x1111111111111111111111111111111111111111"))
	assert.Equal(t, "0xabc", shortAddress("0xabc"))
}

func TestPercentile(t *testing.T) {
	var samples []time.Duration
	for i := 1; i <= 20; i++ {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}

	assert.Equal(t, time.Duration(0), percentile(nil, 50))
	assert.Equal(t, time.Millisecond, percentile(samples, 0))
	assert.Equal(t, 10*time.Millisecond, percentile(samples, 50))
	assert.Equal(t, 19*time.Millisecond, percentile(samples, 95))
	assert.Equal(t, 20*time.Millisecond, percentile(samples, 100))
}

func TestReplayStats(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	stats := newReplayStats(start)

	for i := 1; i <= 12; i++ {
		stats.add(UserSample{
			User:       "user",
			Events:     2,
			Positions:  1,
			LoadTime:   time.Duration(i) * time.Millisecond,
			ReplayTime: time.Millisecond,
		})
	}
	stats.add(UserSample{
		User:      "drifted",
		Events:    3,
		Positions: 2,
		LoadTime:  time.Second,
		Drifted: []reconcile.Drift{{
			User:           "drifted",
			LeveragedToken: "0xlt",
			ReplayCost:     big.NewInt(200),
			StoredCost:     big.NewInt(150),
			ReplayRealized: big.NewInt(0),
			StoredRealized: big.NewInt(0),
		}},
	})
	stats.add(UserSample{User: "broken", Err: errors.New("boom")})
	stats.finish(start.Add(10 * time.Second))

	assert.Equal(t, 14, stats.Users)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 27, stats.Events)
	assert.Equal(t, 14, stats.Positions)
	assert.Equal(t, 1, stats.Drifted)
	assert.Equal(t, 10*time.Second, stats.Duration)
	require.Len(t, stats.Slowest, slowestKept)
	assert.Equal(t, "drifted", stats.Slowest[0].User)
	assert.Equal(t, time.Second, stats.LoadPercentile(100))
	assert.Equal(t, time.Millisecond, stats.ReplayPercentile(50))

	var report strings.Builder
	require.NoError(t, renderMarkdown(&report, stats))
	out := report.String()
	assert.Contains(t, out, "# Replay Benchmark Report")
	assert.Contains(t, out, "| Drifted positions | 1 (7.14%) |")
	assert.Contains(t, out, "| `drifted` | `0xlt` | 50 | 0 |")
	assert.Contains(t, out, "- `broken`: boom")
}

func TestCollectUsersAndReplay(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	users := []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"0x3333333333333333333333333333333333333333",
	}
	tokens := []string{
		"0x5555555555555555555555555555555555555555",
		"0x6666666666666666666666666666666666666666",
	}
	for _, user := range users {
		for _, token := range tokens {
			require.NoError(t, st.EnsureBalance(ctx, user, token))
		}
	}

	got, err := collectUsers(ctx, st, 0)
	require.NoError(t, err)
	assert.Equal(t, users, got)

	got, err = collectUsers(ctx, st, 2)
	require.NoError(t, err)
	assert.Equal(t, users[:2], got)

	// Empty histories replay to zero cost, so the untouched balances are clean
	stats := runReplays(ctx, st, users, &Config{Concurrency: 2, Tolerance: 0})
	assert.Equal(t, 3, stats.Users)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 6, stats.Positions)
	assert.Equal(t, 0, stats.Drifted)
}

func TestReplayUserDrift(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	user := "0x1111111111111111111111111111111111111111"
	token := "0x5555555555555555555555555555555555555555"

	require.NoError(t, st.EnsureBalance(ctx, user, token))
	require.NoError(t, st.UpdateBalance(ctx, user, token, func(b *schema.Balance) error {
		b.PurchaseCost = "5"
		return nil
	}))

	sample := replayUser(ctx, st, user, big.NewInt(4))
	require.NoError(t, sample.Err)
	assert.Equal(t, 1, sample.Positions)
	require.Len(t, sample.Drifted, 1)
	assert.Equal(t, "5", sample.Drifted[0].CostDrift().String())

	sample = replayUser(ctx, st, user, big.NewInt(5))
	require.NoError(t, sample.Err)
	assert.Empty(t, sample.Drifted)
}
