package engine

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OrderStore owns every job, its bid ledger and its timeline. It is the only
// component that mutates them; everything else receives snapshots or returns
// pure computations. Writes to one job are serialized through that job's
// exclusive section; two jobs never block each other. Constructed at service
// startup and injected into callers.
type OrderStore struct {
	rules     *MatchRules
	providers *Directory
	analyzer  MediaAnalyzer
	now       func() time.Time

	mu      sync.RWMutex
	jobs    map[string]*jobState
	subs    map[uint64]*Subscription
	nextSub uint64
}

// jobState bundles one job with its ledger and timeline under one mutex.
type jobState struct {
	mu       sync.Mutex
	job      Job
	ledger   *ledger
	timeline timeline
}

// NewOrderStore builds the engine. The analyzer may be nil; job creation
// then proceeds without media analysis.
func NewOrderStore(rules *MatchRules, providers *Directory, analyzer MediaAnalyzer) *OrderStore {
	if rules == nil {
		rules = DefaultMatchRules()
	}
	if providers == nil {
		providers = NewDirectory()
	}
	return &OrderStore{
		rules:     rules,
		providers: providers,
		analyzer:  analyzer,
		now:       time.Now,
		jobs:      make(map[string]*jobState),
		subs:      make(map[uint64]*Subscription),
	}
}

// Providers exposes the capability profile directory.
func (s *OrderStore) Providers() *Directory { return s.providers }

// Rules exposes the read-only matching configuration.
func (s *OrderStore) Rules() *MatchRules { return s.rules }

// CreateOrder validates and stores a new job in status searching. Media
// analysis is best-effort: an unavailable analyzer degrades to an empty
// analysis and never fails the creation.
func (s *OrderStore) CreateOrder(ctx context.Context, client Actor, data ServiceData, loc Location, scheduledFor *time.Time, priceEstimate int64) (Job, error) {
	if client.ID == "" {
		return Job{}, validationf("missing client")
	}
	if data.Category == "" {
		return Job{}, validationf("missing service category")
	}
	if loc.Address == "" {
		return Job{}, validationf("missing location")
	}
	if data.Complexity == "" {
		data.Complexity = ComplexityStandard
	}
	if data.UrgencyLevel == "" {
		data.UrgencyLevel = UrgencyNormal
	}
	client.Role = RoleClient

	if s.analyzer != nil && len(data.MediaRefs) > 0 {
		isVideo := false
		for _, ref := range data.MediaRefs {
			if strings.HasSuffix(ref, ".mp4") || strings.HasSuffix(ref, ".mov") || strings.HasSuffix(ref, ".webm") {
				isVideo = true
				break
			}
		}
		analysis, err := s.analyzer.Analyze(ctx, data.Category, data.SubProblem, data.Complexity, isVideo)
		if err != nil {
			log.Printf("[engine] media analysis unavailable, continuing without it: %v", err)
		} else if data.AIDescription == "" {
			data.AIDescription = analysis.Summary
		}
	}

	now := s.now()
	job := Job{
		ID:            uuid.New().String(),
		Client:        client,
		ServiceData:   data,
		Location:      loc,
		Status:        StatusSearching,
		ScheduledFor:  scheduledFor,
		CreatedAt:     now,
		PriceEstimate: priceEstimate,
	}

	js := &jobState{job: job, ledger: newLedger()}

	s.mu.Lock()
	s.jobs[job.ID] = js
	s.mu.Unlock()

	js.mu.Lock()
	item := s.appendEvent(js, "job_created", "request created, searching for providers")
	snapshot := js.job.clone()
	js.mu.Unlock()

	s.publish(Notification{
		Type:     NotificationJobCreated,
		JobID:    job.ID,
		Category: job.ServiceData.Category,
		Status:   StatusSearching,
		At:       now,
	})
	s.publishItem(&job, item)
	return snapshot, nil
}

// GetJob returns a snapshot of the job.
func (s *OrderStore) GetJob(jobID string) (Job, error) {
	js, err := s.jobState(jobID)
	if err != nil {
		return Job{}, err
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.job.clone(), nil
}

// SubmitBid records or replaces the provider's bid on an open job. The
// first bid moves the job from searching to pending_acceptance.
func (s *OrderStore) SubmitBid(jobID, providerID string, price int64, message string) (BidResult, error) {
	profile, ok := s.providers.Get(providerID)
	if !ok {
		return BidResult{}, ErrNotFound
	}
	js, err := s.jobState(jobID)
	if err != nil {
		return BidResult{}, err
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if !js.job.Status.BiddingOpen() {
		return BidResult{}, ErrClosed
	}
	if price <= 0 {
		return BidResult{}, validationf("price must be positive")
	}
	if !Visible(&js.job, profile, s.rules) {
		return BidResult{}, validationf("provider not eligible for this job")
	}

	now := s.now()
	bid, modified := js.ledger.upsert(jobID, providerID, price, message, now)

	code := "bid_received"
	if modified {
		code = "bid_modified"
	}
	item := s.appendEvent(js, code, "provider "+providerID+" offered a price")

	if js.job.Status == StatusSearching {
		js.job.Status = StatusPendingAcceptance
		statusItem := s.appendEvent(js, "status_changed", "first offer received, awaiting client decision")
		s.publishStatus(&js.job, statusItem.Timestamp)
		s.publishItem(&js.job, statusItem)
	}

	ntype := NotificationBidReceived
	if modified {
		ntype = NotificationBidModified
	}
	bidCopy := bid
	s.publish(Notification{
		Type:     ntype,
		JobID:    jobID,
		Category: js.job.ServiceData.Category,
		Status:   js.job.Status,
		Bid:      &bidCopy,
		At:       now,
	})
	s.publishItem(&js.job, item)

	return BidResult{Bid: bid, Modified: modified}, nil
}

// GetOrderOffers returns the current bids, decorated once the job has been
// decided: the winning bid is marked accepted, the rest lost with the final
// price attached for display.
func (s *OrderStore) GetOrderOffers(jobID string) ([]BidView, error) {
	js, err := s.jobState(jobID)
	if err != nil {
		return nil, err
	}
	js.mu.Lock()
	defer js.mu.Unlock()

	decided := !js.job.Status.BiddingOpen()
	offers := js.ledger.offers()
	out := make([]BidView, 0, len(offers))
	for _, b := range offers {
		v := BidView{Bid: b}
		if decided {
			v.Accepted = b.ProviderID == js.job.AssignedProviderID && js.job.AssignedProviderID != ""
			v.Lost = !v.Accepted
			v.FinalPrice = js.job.FinalPrice
		}
		out = append(out, v)
	}
	return out, nil
}

// GetOrderStats aggregates the current bids on the job.
func (s *OrderStore) GetOrderStats(jobID string) (BidStats, error) {
	js, err := s.jobState(jobID)
	if err != nil {
		return BidStats{}, err
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.ledger.stats(), nil
}

// AcceptBid assigns the job to the bidding provider, fixes the final price
// and closes the ledger, all under the job's exclusive section. When two
// acceptances race, the status guard lets exactly one through; the loser
// gets ErrConflict.
func (s *OrderStore) AcceptBid(jobID string, actor Actor, bidProviderID string) (Job, error) {
	js, err := s.jobState(jobID)
	if err != nil {
		return Job{}, err
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if actor.ID != js.job.Client.ID && actor.Role != RoleAdmin {
		return Job{}, validationf("only the job's client may accept a bid")
	}
	if !js.job.Status.BiddingOpen() {
		return Job{}, ErrConflict
	}
	bid, ok := js.ledger.bidFor(bidProviderID)
	if !ok {
		return Job{}, ErrNotFound
	}

	js.job.Status = StatusAccepted
	js.job.AssignedProviderID = bidProviderID
	js.job.FinalPrice = bid.Price
	js.ledger.freeze()

	item := s.appendEvent(js, "bid_accepted", "client accepted the offer from provider "+bidProviderID)
	s.publishStatus(&js.job, item.Timestamp)
	s.publishItem(&js.job, item)

	return js.job.clone(), nil
}

// AdvanceStatus moves the job one step along the operational sequence.
// Only the assigned provider may drive it, and only to the single legal
// next state; anything else is an illegal transition and leaves the job
// untouched.
func (s *OrderStore) AdvanceStatus(jobID string, actor Actor, target JobStatus) (Job, error) {
	js, err := s.jobState(jobID)
	if err != nil {
		return Job{}, err
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if js.job.AssignedProviderID == "" || actor.ID != js.job.AssignedProviderID {
		return Job{}, ErrIllegalTransition
	}
	if target == StatusCancelled || !js.job.Status.CanAdvanceTo(target) {
		return Job{}, ErrIllegalTransition
	}

	from := js.job.Status
	js.job.Status = target

	item := s.appendEvent(js, "status_changed", "status moved from "+string(from)+" to "+string(target))
	s.publishStatus(&js.job, item.Timestamp)
	s.publishItem(&js.job, item)

	return js.job.clone(), nil
}

// Cancel moves the job to cancelled from any non-terminal state. Before
// work begins the client or the assigned provider may cancel; once the job
// is in progress only an admin may.
func (s *OrderStore) Cancel(jobID string, actor Actor, reason string) (Job, error) {
	js, err := s.jobState(jobID)
	if err != nil {
		return Job{}, err
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if js.job.Status.Terminal() {
		return Job{}, ErrIllegalTransition
	}

	workStarted := js.job.Status == StatusInProgress || js.job.Status == StatusPaymentPending
	allowed := actor.Role == RoleAdmin
	if !workStarted {
		allowed = allowed || actor.ID == js.job.Client.ID ||
			(js.job.AssignedProviderID != "" && actor.ID == js.job.AssignedProviderID)
	}
	if !allowed {
		return Job{}, ErrIllegalTransition
	}

	js.job.Status = StatusCancelled
	js.ledger.freeze()

	desc := "job cancelled"
	if reason != "" {
		desc = "job cancelled: " + reason
	}
	item := s.appendEvent(js, "cancelled", desc)
	s.publishStatus(&js.job, item.Timestamp)
	s.publishItem(&js.job, item)

	return js.job.clone(), nil
}

// AppendMessage adds a chat message to the job's timeline. Participants
// only: the client, admin, the assigned provider or any provider with a bid.
func (s *OrderStore) AppendMessage(jobID string, sender Actor, content string) (TimelineItem, error) {
	if content == "" {
		return TimelineItem{}, validationf("empty message")
	}
	js, err := s.jobState(jobID)
	if err != nil {
		return TimelineItem{}, err
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if js.job.Status.Terminal() {
		return TimelineItem{}, ErrClosed
	}
	if !s.participant(js, sender) {
		return TimelineItem{}, validationf("not a participant in this job")
	}

	item := s.appendItem(js, TimelineItem{
		Kind:       TimelineMessage,
		SenderID:   sender.ID,
		SenderRole: sender.Role,
		Content:    content,
	})
	s.publishItem(&js.job, item)
	return item, nil
}

// AttachMedia adds a before/after attachment to the job's timeline. The URL
// is opaque; contents are never inspected.
func (s *OrderStore) AttachMedia(jobID string, actor Actor, url string, stage MediaStage) (TimelineItem, error) {
	if url == "" {
		return TimelineItem{}, validationf("missing media url")
	}
	if stage != MediaBefore && stage != MediaAfter {
		return TimelineItem{}, validationf("stage must be before or after")
	}
	js, err := s.jobState(jobID)
	if err != nil {
		return TimelineItem{}, err
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if js.job.Status.Terminal() {
		return TimelineItem{}, ErrClosed
	}
	if !s.participant(js, actor) {
		return TimelineItem{}, validationf("not a participant in this job")
	}

	item := s.appendItem(js, TimelineItem{
		Kind:       TimelineMedia,
		SenderID:   actor.ID,
		SenderRole: actor.Role,
		URL:        url,
		Stage:      stage,
	})
	s.publishItem(&js.job, item)
	return item, nil
}

// GetTimeline returns the job's merged log in (timestamp, seq) order.
func (s *OrderStore) GetTimeline(jobID string) ([]TimelineItem, error) {
	js, err := s.jobState(jobID)
	if err != nil {
		return nil, err
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.timeline.snapshot(), nil
}

// GetAvailableRequests returns every job still open for bidding, newest
// first.
func (s *OrderStore) GetAvailableRequests() []Job {
	out := s.collect(func(job *Job) bool { return job.Status.BiddingOpen() })
	return out
}

// GetMatchedRequests returns the open jobs visible to the provider, joined
// with the provider's match and ranked by score.
func (s *OrderStore) GetMatchedRequests(providerID string) ([]MatchedRequest, error) {
	profile, ok := s.providers.Get(providerID)
	if !ok {
		return nil, ErrNotFound
	}
	open := s.collect(func(job *Job) bool { return job.Status.BiddingOpen() })

	out := make([]MatchedRequest, 0, len(open))
	for _, job := range open {
		if !Visible(&job, profile, s.rules) {
			continue
		}
		out = append(out, MatchedRequest{Job: job, Match: Score(&job, profile, s.rules)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Match.MatchScore > out[j].Match.MatchScore })
	return out, nil
}

// GetProviderOrders returns every job the provider is assigned to or has
// bid on, newest first.
func (s *OrderStore) GetProviderOrders(providerID string) []Job {
	s.mu.RLock()
	states := make([]*jobState, 0, len(s.jobs))
	for _, js := range s.jobs {
		states = append(states, js)
	}
	s.mu.RUnlock()

	var out []Job
	for _, js := range states {
		js.mu.Lock()
		_, hasBid := js.ledger.bidFor(providerID)
		if hasBid || js.job.AssignedProviderID == providerID {
			out = append(out, js.job.clone())
		}
		js.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// RecordReview folds a client review of a completed job into the assigned
// provider's rating.
func (s *OrderStore) RecordReview(jobID string, actor Actor, stars int) error {
	js, err := s.jobState(jobID)
	if err != nil {
		return err
	}

	js.mu.Lock()
	job := js.job.clone()
	js.mu.Unlock()

	if actor.ID != job.Client.ID {
		return validationf("only the job's client may review")
	}
	if job.Status != StatusCompleted {
		return ErrIllegalTransition
	}
	if job.AssignedProviderID == "" || !s.providers.RecordRating(job.AssignedProviderID, stars) {
		return ErrNotFound
	}
	return nil
}

// Subscribe registers a bounded, drop-oldest notification stream. Callers
// must Unsubscribe when done.
func (s *OrderStore) Subscribe(filter SubscriptionFilter) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	sub := &Subscription{
		id:     s.nextSub,
		filter: filter,
		ch:     make(chan Notification, subscriberBuffer),
	}
	s.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the stream and closes its channel.
func (s *OrderStore) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	delete(s.subs, sub.id)
	s.mu.Unlock()
	sub.close()
}

// Close tears the store down, closing every subscriber stream.
func (s *OrderStore) Close() {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[uint64]*Subscription)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}

func (s *OrderStore) jobState(jobID string) (*jobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	js, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return js, nil
}

func (s *OrderStore) collect(keep func(*Job) bool) []Job {
	s.mu.RLock()
	states := make([]*jobState, 0, len(s.jobs))
	for _, js := range s.jobs {
		states = append(states, js)
	}
	s.mu.RUnlock()

	var out []Job
	for _, js := range states {
		js.mu.Lock()
		if keep(&js.job) {
			out = append(out, js.job.clone())
		}
		js.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// participant reports whether the actor may write to the job's timeline.
func (s *OrderStore) participant(js *jobState, actor Actor) bool {
	if actor.Role == RoleAdmin || actor.ID == js.job.Client.ID {
		return true
	}
	if actor.ID == "" {
		return false
	}
	if actor.ID == js.job.AssignedProviderID {
		return true
	}
	_, hasBid := js.ledger.bidFor(actor.ID)
	return hasBid
}

// appendEvent appends a system event item. Caller holds the job's section.
func (s *OrderStore) appendEvent(js *jobState, code, description string) TimelineItem {
	return s.appendItem(js, TimelineItem{
		Kind:        TimelineEvent,
		Code:        code,
		Description: description,
	})
}

func (s *OrderStore) appendItem(js *jobState, item TimelineItem) TimelineItem {
	item.JobID = js.job.ID
	return js.timeline.append(item, s.now())
}

func (s *OrderStore) publishStatus(job *Job, at time.Time) {
	s.publish(Notification{
		Type:     NotificationStatusChanged,
		JobID:    job.ID,
		Category: job.ServiceData.Category,
		Status:   job.Status,
		At:       at,
	})
}

func (s *OrderStore) publishItem(job *Job, item TimelineItem) {
	itemCopy := item
	s.publish(Notification{
		Type:     NotificationTimelineItem,
		JobID:    job.ID,
		Category: job.ServiceData.Category,
		Status:   job.Status,
		Item:     &itemCopy,
		At:       item.Timestamp,
	})
}

// publish fans a notification out to matching subscribers. Subscriber
// channels are bounded and drop-oldest, so this never blocks a producer.
func (s *OrderStore) publish(n Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.matches(n) {
			sub.publish(n)
		}
	}
}
