package engine

import (
	"time"

	"github.com/google/uuid"
)

// TimelineKind tags the variant of a timeline item.
type TimelineKind string

const (
	TimelineMessage TimelineKind = "message"
	TimelineEvent   TimelineKind = "event"
	TimelineMedia   TimelineKind = "media"
)

// MediaStage tags an attachment as documenting the job before or after work.
type MediaStage string

const (
	MediaBefore MediaStage = "before"
	MediaAfter  MediaStage = "after"
)

// TimelineItem is one entry in a job's merged log: a chat message, a system
// event or a media attachment. Immutable once appended. The variant fields
// are populated per Kind; the engine never branches on Kind beyond storage
// and ordering.
type TimelineItem struct {
	ID        string       `json:"id"`
	JobID     string       `json:"job_id"`
	Kind      TimelineKind `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	Seq       uint64       `json:"seq"`

	// Message
	SenderID   string `json:"sender_id,omitempty"`
	SenderRole Role   `json:"sender_role,omitempty"`
	Content    string `json:"content,omitempty"`

	// Event
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`

	// Media
	URL   string     `json:"url,omitempty"`
	Stage MediaStage `json:"stage,omitempty"`
}

// timeline is the append-only log for one job, ordered by (timestamp, seq).
// Access is serialized by the owning job's exclusive section.
type timeline struct {
	items []TimelineItem
	seq   uint64
	last  time.Time
}

// append assigns id, sequence and timestamp and stores the item. A timestamp
// earlier than the previous append is bumped so that a reader always
// observes non-decreasing (timestamp, seq) and causal order is preserved.
func (t *timeline) append(item TimelineItem, now time.Time) TimelineItem {
	t.seq++
	item.ID = uuid.New().String()
	item.Seq = t.seq
	if item.Timestamp.IsZero() {
		item.Timestamp = now
	}
	if item.Timestamp.Before(t.last) {
		item.Timestamp = t.last
	}
	t.last = item.Timestamp
	t.items = append(t.items, item)
	return item
}

// snapshot returns a copy of the log; the backing store is never mutated
// after append, so the copy is safe to iterate without coordination.
func (t *timeline) snapshot() []TimelineItem {
	return append([]TimelineItem(nil), t.items...)
}
