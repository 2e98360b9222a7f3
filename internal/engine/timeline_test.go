package engine

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineAppendAssignsOrderingKey(t *testing.T) {
	var tl timeline
	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	a := tl.append(TimelineItem{Kind: TimelineEvent, Code: "job_created"}, t0)
	b := tl.append(TimelineItem{Kind: TimelineMessage, Content: "hello"}, t0.Add(time.Second))

	require.NotEmpty(t, a.ID)
	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(2), b.Seq)
	assert.Equal(t, t0, a.Timestamp)
}

func TestTimelineBumpsOutOfOrderTimestamps(t *testing.T) {
	var tl timeline
	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	tl.append(TimelineItem{Kind: TimelineEvent, Code: "bid_accepted", Timestamp: t0.Add(time.Minute)}, t0)
	// A follow-up carrying an earlier wall clock must not sort before its
	// trigger.
	follow := tl.append(TimelineItem{Kind: TimelineEvent, Code: "status_changed", Timestamp: t0}, t0)

	assert.Equal(t, t0.Add(time.Minute), follow.Timestamp)

	items := tl.snapshot()
	assert.True(t, sort.SliceIsSorted(items, func(i, j int) bool {
		if !items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].Timestamp.Before(items[j].Timestamp)
		}
		return items[i].Seq < items[j].Seq
	}))
}

func TestTimelineSnapshotIsACopy(t *testing.T) {
	var tl timeline
	tl.append(TimelineItem{Kind: TimelineMessage, Content: "original"}, time.Now())

	snap := tl.snapshot()
	snap[0].Content = "tampered"

	again := tl.snapshot()
	assert.Equal(t, "original", again[0].Content)
}
