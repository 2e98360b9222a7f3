package engine

import (
	"context"
	"time"
)

// Role identifies which side of the marketplace an actor belongs to.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Actor is an immutable identity reference. Actors are referenced by jobs,
// bids and timeline items but never owned by them.
type Actor struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

// Complexity classifies how involved the requested work is.
type Complexity string

const (
	ComplexityStandard Complexity = "standard"
	ComplexityComplex  Complexity = "complex"
	ComplexityCritical Complexity = "critical"
)

// Urgency classifies how quickly the client needs a provider on site.
type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// ServiceData describes what the client is asking for.
type ServiceData struct {
	Category                 string     `json:"category"`
	SubProblem               string     `json:"sub_problem"`
	Complexity               Complexity `json:"complexity"`
	UrgencyLevel             Urgency    `json:"urgency_level"`
	EstimatedDurationMinutes int        `json:"estimated_duration_minutes,omitempty"`
	MediaRefs                []string   `json:"media_refs,omitempty"`
	AIDescription            string     `json:"ai_description,omitempty"`
}

// Location is a geocoded address, consumed verbatim from the geocoding
// collaborator. Coordinates are not validated beyond presence.
type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Job is the central aggregate: one service request moving through the
// lifecycle. All monetary amounts are in agorot.
type Job struct {
	ID                 string      `json:"id"`
	Client             Actor       `json:"client"`
	ServiceData        ServiceData `json:"service_data"`
	Location           Location    `json:"location"`
	Status             JobStatus   `json:"status"`
	ScheduledFor       *time.Time  `json:"scheduled_for,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	PriceEstimate      int64       `json:"price_estimate,omitempty"`
	AssignedProviderID string      `json:"assigned_provider_id,omitempty"`
	FinalPrice         int64       `json:"final_price,omitempty"`
}

func (j *Job) clone() Job {
	out := *j
	if j.ServiceData.MediaRefs != nil {
		out.ServiceData.MediaRefs = append([]string(nil), j.ServiceData.MediaRefs...)
	}
	return out
}

// Bid is a provider's current price proposal for a job. Keyed uniquely by
// (JobID, ProviderID); resubmission replaces price/message and bumps Version.
type Bid struct {
	JobID       string    `json:"job_id"`
	ProviderID  string    `json:"provider_id"`
	Price       int64     `json:"price"`
	Message     string    `json:"message,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

// BidResult is returned from SubmitBid. Modified reports that the provider
// already had a bid on the job and this call replaced it.
type BidResult struct {
	Bid      Bid  `json:"bid"`
	Modified bool `json:"modified"`
}

// BidView decorates a bid for display once the job has been decided.
type BidView struct {
	Bid
	Accepted   bool  `json:"accepted,omitempty"`
	Lost       bool  `json:"lost,omitempty"`
	FinalPrice int64 `json:"final_price,omitempty"`
}

// BidStats aggregates the current bids on a job. Zeroed when TotalBids is 0.
type BidStats struct {
	MinPrice  int64   `json:"min_price"`
	MaxPrice  int64   `json:"max_price"`
	AvgPrice  float64 `json:"avg_price"`
	TotalBids int     `json:"total_bids"`
}

// MatchResult is the derived fitness of one provider for one job. It is
// recomputed on demand and never stored.
type MatchResult struct {
	JobID               string   `json:"job_id"`
	ProviderID          string   `json:"provider_id"`
	MatchScore          int      `json:"match_score"`
	MatchedCapabilities []string `json:"matched_capabilities"`
	MatchReasons        []string `json:"match_reasons"`
	Badge               string   `json:"badge,omitempty"`
}

// MatchedRequest joins an open job with the requesting provider's match.
type MatchedRequest struct {
	Job   Job         `json:"job"`
	Match MatchResult `json:"match"`
}

// MediaAnalysis is the result of the external AI media analysis collaborator.
type MediaAnalysis struct {
	Summary            string   `json:"summary"`
	DetectedIssues     []string `json:"detected_issues,omitempty"`
	EstimatedMaterials []string `json:"estimated_materials,omitempty"`
	ConfidenceScore    float64  `json:"confidence_score"`
}

// MediaAnalyzer is the external AI analysis collaborator. A failed or absent
// analyzer degrades to an empty analysis; it never blocks job creation.
type MediaAnalyzer interface {
	Analyze(ctx context.Context, category, subProblem string, complexity Complexity, isVideo bool) (MediaAnalysis, error)
}
