package engine

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusSearching         JobStatus = "searching"
	StatusPendingAcceptance JobStatus = "pending_acceptance"
	StatusAccepted          JobStatus = "accepted"
	StatusEnRoute           JobStatus = "en_route"
	StatusArrived           JobStatus = "arrived"
	StatusInProgress        JobStatus = "in_progress"
	StatusPaymentPending    JobStatus = "payment_pending"
	StatusCompleted         JobStatus = "completed"
	StatusCancelled         JobStatus = "cancelled"
)

// nextStatus maps each non-terminal state to the single legal forward step.
// Cancellation is handled separately and is legal from any non-terminal state.
var nextStatus = map[JobStatus]JobStatus{
	StatusSearching:         StatusPendingAcceptance,
	StatusPendingAcceptance: StatusAccepted,
	StatusAccepted:          StatusEnRoute,
	StatusEnRoute:           StatusArrived,
	StatusArrived:           StatusInProgress,
	StatusInProgress:        StatusPaymentPending,
	StatusPaymentPending:    StatusCompleted,
}

// Terminal reports whether no further status or bid mutation is accepted.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// BiddingOpen reports whether the ledger still accepts bids in this state.
func (s JobStatus) BiddingOpen() bool {
	return s == StatusSearching || s == StatusPendingAcceptance
}

// CanAdvanceTo reports whether target is the single legal next state.
func (s JobStatus) CanAdvanceTo(target JobStatus) bool {
	next, ok := nextStatus[s]
	return ok && next == target
}

// Valid reports whether s is one of the known lifecycle states.
func (s JobStatus) Valid() bool {
	if s.Terminal() {
		return true
	}
	_, ok := nextStatus[s]
	return ok
}
