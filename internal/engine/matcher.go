package engine

import (
	"fmt"
	"math"
	"sort"
)

// Badge labels for strong matches.
const (
	BadgeExcellent = "excellent match"
	BadgeGood      = "good match"
)

// MatchWeights are the scoring weights. They sum to the maximum score.
type MatchWeights struct {
	CapabilityOverlap float64 `json:"capability_overlap"`
	Distance          float64 `json:"distance"`
	UrgencyFit        float64 `json:"urgency_fit"`
	Rating            float64 `json:"rating"`
}

// MatchRules is the process-wide, read-only matching configuration: scoring
// weights, the visibility radius and the required-capability lookup table
// keyed by category then sub-problem. Loaded once at startup.
type MatchRules struct {
	RadiusKM float64                        `json:"radius_km"`
	Weights  MatchWeights                   `json:"weights"`
	Required map[string]map[string][]string `json:"required_capabilities"`
}

// DefaultMatchRules returns the compiled-in rule set. Deployments override
// it with a JSON rules file; the table is product data, not logic.
func DefaultMatchRules() *MatchRules {
	return &MatchRules{
		RadiusKM: 15,
		Weights: MatchWeights{
			CapabilityOverlap: 60,
			Distance:          25,
			UrgencyFit:        10,
			Rating:            5,
		},
		Required: map[string]map[string][]string{
			"plumbing": {
				"leak":       {"pipe_repair", "water_shutoff"},
				"clog":       {"drain_cleaning"},
				"boiler":     {"boiler_service", "water_shutoff"},
				"renovation": {"pipe_repair", "fixture_install"},
			},
			"electrical": {
				"outage":        {"circuit_diagnosis", "panel_work"},
				"short_circuit": {"circuit_diagnosis"},
				"installation":  {"fixture_install", "wiring"},
			},
			"hvac": {
				"no_cooling":  {"ac_repair", "refrigerant_handling"},
				"no_heating":  {"heating_repair"},
				"maintenance": {"ac_service"},
			},
			"locksmith": {
				"lockout":     {"lock_picking"},
				"replacement": {"lock_install"},
			},
			"appliance": {
				"washer":       {"appliance_repair"},
				"refrigerator": {"appliance_repair", "refrigerant_handling"},
				"oven":         {"appliance_repair", "gas_certified"},
			},
		},
	}
}

// RequiredCapabilities resolves the capability set a job demands. Unknown
// category/sub-problem pairs resolve to an empty set.
func (r *MatchRules) RequiredCapabilities(category, subProblem string) []string {
	subs, ok := r.Required[category]
	if !ok {
		return nil
	}
	return subs[subProblem]
}

// ProviderProfile is a provider's declared capability profile as consumed by
// the matcher. See Directory for the registry that owns these.
type ProviderProfile struct {
	ID                string              `json:"id"`
	DisplayName       string              `json:"display_name,omitempty"`
	Capabilities      map[string]struct{} `json:"-"`
	ServiceCategories map[string]struct{} `json:"-"`
	BaseLocation      Location            `json:"base_location"`
	Rating            float64             `json:"rating"`
	RatingCount       int                 `json:"rating_count"`
	AcceptsEmergency  bool                `json:"accepts_emergency"`
}

// Visible reports whether the job may be shown to the provider at all:
// category must be one of the provider's service categories and the job must
// lie within the visibility radius. The score ranks, it does not gate.
func Visible(job *Job, p ProviderProfile, rules *MatchRules) bool {
	if _, ok := p.ServiceCategories[job.ServiceData.Category]; !ok {
		return false
	}
	return haversineKM(job.Location.Lat, job.Location.Lng, p.BaseLocation.Lat, p.BaseLocation.Lng) <= rules.RadiusKM
}

// Score computes the provider's fitness for the job. Pure and side-effect
// free; safe to call concurrently.
func Score(job *Job, p ProviderProfile, rules *MatchRules) MatchResult {
	required := rules.RequiredCapabilities(job.ServiceData.Category, job.ServiceData.SubProblem)

	matched := make([]string, 0, len(required))
	for _, tag := range required {
		if _, ok := p.Capabilities[tag]; ok {
			matched = append(matched, tag)
		}
	}
	sort.Strings(matched)

	overlap := 1.0
	if len(required) > 0 {
		overlap = float64(len(matched)) / float64(len(required))
	}

	distKM := haversineKM(job.Location.Lat, job.Location.Lng, p.BaseLocation.Lat, p.BaseLocation.Lng)
	proximity := 0.0
	if rules.RadiusKM > 0 && distKM <= rules.RadiusKM {
		proximity = 1 - distKM/rules.RadiusKM
	}

	emergencyFit := 0.0
	if job.ServiceData.UrgencyLevel == UrgencyEmergency && p.AcceptsEmergency {
		emergencyFit = 1
	}

	rating := p.Rating
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}

	w := rules.Weights
	score := overlap*w.CapabilityOverlap + proximity*w.Distance + emergencyFit*w.UrgencyFit + (rating/5)*w.Rating
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	// Reasons in descending weight order.
	reasons := make([]string, 0, 4)
	if len(required) == 0 {
		reasons = append(reasons, "no specific capabilities required for this request")
	} else {
		reasons = append(reasons, fmt.Sprintf("covers %d of %d required capabilities", len(matched), len(required)))
	}
	if proximity > 0 {
		reasons = append(reasons, fmt.Sprintf("%.1f km away", distKM))
	} else {
		reasons = append(reasons, fmt.Sprintf("outside the %.0f km service radius", rules.RadiusKM))
	}
	if emergencyFit > 0 {
		reasons = append(reasons, "accepts emergency calls")
	}
	if rating > 0 {
		reasons = append(reasons, fmt.Sprintf("rated %.1f of 5", rating))
	}

	result := MatchResult{
		JobID:               job.ID,
		ProviderID:          p.ID,
		MatchScore:          int(math.Round(score)),
		MatchedCapabilities: matched,
		MatchReasons:        reasons,
	}
	switch {
	case result.MatchScore >= 80:
		result.Badge = BadgeExcellent
	case result.MatchScore >= 70:
		result.Badge = BadgeGood
	}
	return result
}

const earthRadiusKM = 6371.0

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
