package engine

import "sync"

// Directory is the registry of provider capability profiles consulted by the
// matcher and the bid eligibility gate. Reads take a snapshot copy; profile
// updates replace the stored value wholesale.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]ProviderProfile
}

// NewDirectory returns an empty provider directory.
func NewDirectory() *Directory {
	return &Directory{profiles: make(map[string]ProviderProfile)}
}

// Upsert stores or replaces a provider's profile. Rating history carried on
// an existing profile is preserved unless the caller supplies one.
func (d *Directory) Upsert(p ProviderProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.profiles[p.ID]; ok && p.RatingCount == 0 {
		p.Rating = existing.Rating
		p.RatingCount = existing.RatingCount
	}
	d.profiles[p.ID] = cloneProfile(p)
}

// Get returns the provider's profile, if registered.
func (d *Directory) Get(providerID string) (ProviderProfile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[providerID]
	if !ok {
		return ProviderProfile{}, false
	}
	return cloneProfile(p), true
}

// Snapshot returns a copy of every registered profile.
func (d *Directory) Snapshot() []ProviderProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ProviderProfile, 0, len(d.profiles))
	for _, p := range d.profiles {
		out = append(out, cloneProfile(p))
	}
	return out
}

// RecordRating folds one review (1..5 stars) into the provider's running
// average.
func (d *Directory) RecordRating(providerID string, stars int) bool {
	if stars < 1 {
		stars = 1
	}
	if stars > 5 {
		stars = 5
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[providerID]
	if !ok {
		return false
	}
	total := p.Rating*float64(p.RatingCount) + float64(stars)
	p.RatingCount++
	p.Rating = total / float64(p.RatingCount)
	d.profiles[providerID] = p
	return true
}

// TagSet builds the set form used for capabilities and service categories.
func TagSet(tags ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

func cloneProfile(p ProviderProfile) ProviderProfile {
	out := p
	out.Capabilities = make(map[string]struct{}, len(p.Capabilities))
	for k := range p.Capabilities {
		out.Capabilities[k] = struct{}{}
	}
	out.ServiceCategories = make(map[string]struct{}, len(p.ServiceCategories))
	for k := range p.ServiceCategories {
		out.ServiceCategories[k] = struct{}{}
	}
	return out
}
