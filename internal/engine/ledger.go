package engine

import "time"

// ledger holds the current bids for one job, at most one per provider.
// All access is serialized by the owning job's exclusive section.
type ledger struct {
	bids   map[string]*Bid
	order  []string // provider ids in first-bid order
	frozen bool
}

func newLedger() *ledger {
	return &ledger{bids: make(map[string]*Bid)}
}

// upsert records or replaces the provider's bid. The modified flag reports
// that a prior bid existed; it is derived here and returned, never stored.
func (l *ledger) upsert(jobID, providerID string, price int64, message string, now time.Time) (Bid, bool) {
	if existing, ok := l.bids[providerID]; ok {
		existing.Price = price
		existing.Message = message
		existing.UpdatedAt = now
		existing.Version++
		return *existing, true
	}
	bid := &Bid{
		JobID:       jobID,
		ProviderID:  providerID,
		Price:       price,
		Message:     message,
		SubmittedAt: now,
		UpdatedAt:   now,
		Version:     1,
	}
	l.bids[providerID] = bid
	l.order = append(l.order, providerID)
	return *bid, false
}

// offers returns the current bids, one per provider, ordered by when each
// provider first bid but carrying the latest price/message.
func (l *ledger) offers() []Bid {
	out := make([]Bid, 0, len(l.order))
	for _, pid := range l.order {
		out = append(out, *l.bids[pid])
	}
	return out
}

func (l *ledger) bidFor(providerID string) (Bid, bool) {
	b, ok := l.bids[providerID]
	if !ok {
		return Bid{}, false
	}
	return *b, true
}

// stats aggregates over current bids. TotalBids counts distinct providers,
// not submissions.
func (l *ledger) stats() BidStats {
	s := BidStats{TotalBids: len(l.bids)}
	if s.TotalBids == 0 {
		return s
	}
	var sum int64
	first := true
	for _, b := range l.bids {
		if first || b.Price < s.MinPrice {
			s.MinPrice = b.Price
		}
		if first || b.Price > s.MaxPrice {
			s.MaxPrice = b.Price
		}
		sum += b.Price
		first = false
	}
	s.AvgPrice = float64(sum) / float64(s.TotalBids)
	return s
}

// freeze closes the ledger; no further upsert succeeds. Existing bids stay
// readable as history.
func (l *ledger) freeze() {
	l.frozen = true
}
