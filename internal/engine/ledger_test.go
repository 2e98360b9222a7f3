package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerUpsertKeepsOnePerProvider(t *testing.T) {
	l := newLedger()
	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	first, modified := l.upsert("job-1", "p1", 15000, "can be there in an hour", t0)
	require.False(t, modified)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, t0, first.SubmittedAt)

	second, modified := l.upsert("job-1", "p1", 13000, "price drop", t0.Add(time.Minute))
	require.True(t, modified)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, t0, second.SubmittedAt, "first-bid time is kept")
	assert.Equal(t, t0.Add(time.Minute), second.UpdatedAt)

	offers := l.offers()
	require.Len(t, offers, 1)
	assert.Equal(t, int64(13000), offers[0].Price)
	assert.Equal(t, "price drop", offers[0].Message)
}

func TestLedgerOffersOrderedByFirstBid(t *testing.T) {
	l := newLedger()
	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	l.upsert("job-1", "p1", 200, "", t0)
	l.upsert("job-1", "p2", 100, "", t0.Add(time.Minute))
	l.upsert("job-1", "p3", 300, "", t0.Add(2*time.Minute))
	// p1 rebids last; order must not change.
	l.upsert("job-1", "p1", 150, "", t0.Add(3*time.Minute))

	offers := l.offers()
	require.Len(t, offers, 3)
	assert.Equal(t, "p1", offers[0].ProviderID)
	assert.Equal(t, "p2", offers[1].ProviderID)
	assert.Equal(t, "p3", offers[2].ProviderID)
	assert.Equal(t, int64(150), offers[0].Price)
}

func TestLedgerStats(t *testing.T) {
	l := newLedger()
	now := time.Now()

	empty := l.stats()
	assert.Equal(t, BidStats{}, empty)

	l.upsert("job-1", "p1", 150, "", now)
	l.upsert("job-1", "p2", 250, "", now)
	l.upsert("job-1", "p3", 200, "", now)
	// Resubmission must not inflate the distinct-provider count.
	l.upsert("job-1", "p2", 220, "", now)

	s := l.stats()
	assert.Equal(t, 3, s.TotalBids)
	assert.Equal(t, int64(150), s.MinPrice)
	assert.Equal(t, int64(220), s.MaxPrice)
	assert.LessOrEqual(t, float64(s.MinPrice), s.AvgPrice)
	assert.LessOrEqual(t, s.AvgPrice, float64(s.MaxPrice))
	assert.InDelta(t, 190, s.AvgPrice, 0.001)
}
