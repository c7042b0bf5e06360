package domain

import (
	"sort"
	"strings"
)

// previewSampleSize caps the example records carried in a FilterPreview.
const previewSampleSize = 5

// FilterConfig is the persisted, process-wide alert filter. A single slot
// holds the active version; saving overwrites it wholesale. Empty sets mean
// "no restriction", and the blacklist always wins over the whitelist.
type FilterConfig struct {
	Enabled           bool     `json:"enabled"`
	MinThreshold      int      `json:"min_threshold"`
	MaxThreshold      *int     `json:"max_threshold"`
	WhitelistedModels []string `json:"whitelisted_models"`
	BlacklistedModels []string `json:"blacklisted_models"`
	Channels          []string `json:"channels"`
	Stores            []string `json:"stores"`
}

// DefaultFilterConfig is the configuration in effect before any save:
// filtering disabled, no thresholds, no set restrictions.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinThreshold:      0,
		MaxThreshold:      nil,
		WhitelistedModels: []string{},
		BlacklistedModels: []string{},
		Channels:          []string{},
		Stores:            []string{},
	}
}

// Canonicalize trims whitespace and drops empty and duplicate entries from
// every set, preserving first-seen order. Thresholds are left untouched;
// invalid thresholds are rejected by Validate, never repaired.
func (c *FilterConfig) Canonicalize() {
	c.WhitelistedModels = canonicalSet(c.WhitelistedModels)
	c.BlacklistedModels = canonicalSet(c.BlacklistedModels)
	c.Channels = canonicalSet(c.Channels)
	c.Stores = canonicalSet(c.Stores)
}

// Validate rejects configurations that violate the threshold invariants.
func (c FilterConfig) Validate() error {
	if c.MinThreshold < 0 {
		return &ValidationError{Field: "min_threshold", Reason: "must be zero or positive"}
	}
	if c.MaxThreshold != nil && *c.MaxThreshold < c.MinThreshold {
		return &ValidationError{Field: "max_threshold", Reason: "must be greater than or equal to min_threshold"}
	}
	return nil
}

// FilterOptions lists the distinct models, channels and stores seen in one
// job's records, for populating configuration choices.
type FilterOptions struct {
	Models   []string `json:"models"`
	Channels []string `json:"channels"`
	Stores   []string `json:"stores"`
}

// CollectFilterOptions extracts the sorted distinct values from records,
// keeping only entries that contain the query substring, case-insensitively.
// An empty query keeps everything.
func CollectFilterOptions(records []ChangeRecord, query string) FilterOptions {
	models := make(map[string]struct{})
	channels := make(map[string]struct{})
	stores := make(map[string]struct{})
	for _, r := range records {
		models[r.ModelID] = struct{}{}
		channels[r.Channel] = struct{}{}
		stores[r.StoreID] = struct{}{}
	}
	return FilterOptions{
		Models:   matchSorted(models, query),
		Channels: matchSorted(channels, query),
		Stores:   matchSorted(stores, query),
	}
}

func matchSorted(values map[string]struct{}, query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]string, 0, len(values))
	for v := range values {
		if query == "" || strings.Contains(strings.ToLower(v), query) {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// FilterPreview reports what a configuration would do to a record list
// without persisting anything.
type FilterPreview struct {
	OriginalCount       int            `json:"original_count"`
	FilteredCount       int            `json:"filtered_count"`
	HiddenCount         int            `json:"hidden_count"`
	ReductionPercentage float64        `json:"reduction_percentage"`
	SampleVisible       []ChangeRecord `json:"sample_visible,omitempty"`
	SampleHidden        []ChangeRecord `json:"sample_hidden,omitempty"`
}

// ApplyFilters narrows records to the set the configuration lets through.
// A disabled configuration is the identity. The config must have passed
// Validate; ApplyFilters does not re-check it.
func ApplyFilters(records []ChangeRecord, cfg FilterConfig) []ChangeRecord {
	if !cfg.Enabled {
		return records
	}
	sets := compileFilterSets(cfg)
	out := make([]ChangeRecord, 0, len(records))
	for _, r := range records {
		if sets.include(r, cfg) {
			out = append(out, r)
		}
	}
	return out
}

// PreviewFilters evaluates a candidate configuration against records and
// reports before/after counts plus a handful of example rows from each side.
// It never mutates records and never touches persisted state.
func PreviewFilters(records []ChangeRecord, cfg FilterConfig) FilterPreview {
	p := FilterPreview{OriginalCount: len(records)}
	sets := compileFilterSets(cfg)
	for _, r := range records {
		if !cfg.Enabled || sets.include(r, cfg) {
			p.FilteredCount++
			if len(p.SampleVisible) < previewSampleSize {
				p.SampleVisible = append(p.SampleVisible, r)
			}
			continue
		}
		p.HiddenCount++
		if len(p.SampleHidden) < previewSampleSize {
			p.SampleHidden = append(p.SampleHidden, r)
		}
	}
	if p.OriginalCount > 0 {
		p.ReductionPercentage = float64(p.HiddenCount) / float64(p.OriginalCount) * 100
	}
	return p
}

// filterSets holds the configuration's sets as maps for O(1) membership.
type filterSets struct {
	whitelist map[string]struct{}
	blacklist map[string]struct{}
	channels  map[string]struct{}
	stores    map[string]struct{}
}

func compileFilterSets(cfg FilterConfig) filterSets {
	return filterSets{
		whitelist: toSet(cfg.WhitelistedModels),
		blacklist: toSet(cfg.BlacklistedModels),
		channels:  toSet(cfg.Channels),
		stores:    toSet(cfg.Stores),
	}
}

// include applies the rule chain in precedence order; the first matching
// rule decides. Blacklist beats whitelist, set restrictions beat thresholds.
func (s filterSets) include(r ChangeRecord, cfg FilterConfig) bool {
	if _, banned := s.blacklist[r.ModelID]; banned {
		return false
	}
	if len(s.whitelist) > 0 {
		if _, listed := s.whitelist[r.ModelID]; !listed {
			return false
		}
	}
	if len(s.channels) > 0 {
		if _, ok := s.channels[r.Channel]; !ok {
			return false
		}
	}
	if len(s.stores) > 0 {
		if _, ok := s.stores[r.StoreID]; !ok {
			return false
		}
	}
	magnitude := r.Difference
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude < cfg.MinThreshold {
		return false
	}
	if cfg.MaxThreshold != nil && magnitude > *cfg.MaxThreshold {
		return false
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func canonicalSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
