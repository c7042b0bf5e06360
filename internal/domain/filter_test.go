package domain

import (
	"reflect"
	"testing"
)

func intPtr(n int) *int {
	return &n
}

func sampleRecords() []ChangeRecord {
	return []ChangeRecord{
		{StoreID: "S1", ModelID: "M1", Channel: "retail", PreviousCount: 10, CurrentCount: 7, Difference: -3, ChangeType: Decrease},
		{StoreID: "S1", ModelID: "M2", Channel: "retail", PreviousCount: 2, CurrentCount: 12, Difference: 10, ChangeType: Increase},
		{StoreID: "S2", ModelID: "M3", Channel: "online", PreviousCount: 5, CurrentCount: 5, Difference: 0, ChangeType: Unchanged},
		{StoreID: "S3", ModelID: "M1", Channel: "online", PreviousCount: 20, CurrentCount: 0, Difference: -20, ChangeType: Decrease},
	}
}

func TestApplyFiltersDisabledIsIdentity(t *testing.T) {
	records := sampleRecords()
	cfg := DefaultFilterConfig()

	got := ApplyFilters(records, cfg)

	if !reflect.DeepEqual(got, records) {
		t.Fatal("disabled config must return records unchanged")
	}
}

func TestApplyFiltersIsIdempotent(t *testing.T) {
	records := sampleRecords()
	cfg := FilterConfig{Enabled: true, MinThreshold: 2, Channels: []string{"retail", "online"}}

	once := ApplyFilters(records, cfg)
	twice := ApplyFilters(once, cfg)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("filtering must be idempotent: first %+v, second %+v", once, twice)
	}
}

func TestApplyFiltersBlacklistBeatsWhitelist(t *testing.T) {
	records := sampleRecords()
	cfg := FilterConfig{
		Enabled:           true,
		WhitelistedModels: []string{"M1"},
		BlacklistedModels: []string{"M1"},
	}

	got := ApplyFilters(records, cfg)

	for _, r := range got {
		if r.ModelID == "M1" {
			t.Fatalf("blacklisted model leaked through: %+v", r)
		}
	}
	if len(got) != 0 {
		t.Fatalf("whitelist restricted to M1 and blacklist removed it; expected nothing, got %d", len(got))
	}
}

func TestApplyFiltersRuleChain(t *testing.T) {
	tests := []struct {
		name string
		cfg  FilterConfig
		want []string // surviving model ids in order
	}{
		{
			name: "min threshold drops small changes",
			cfg:  FilterConfig{Enabled: true, MinThreshold: 5},
			want: []string{"M2", "M1"},
		},
		{
			name: "max threshold drops large changes",
			cfg:  FilterConfig{Enabled: true, MaxThreshold: intPtr(10)},
			want: []string{"M1", "M2", "M3"},
		},
		{
			name: "channel restriction",
			cfg:  FilterConfig{Enabled: true, Channels: []string{"online"}},
			want: []string{"M3", "M1"},
		},
		{
			name: "store restriction",
			cfg:  FilterConfig{Enabled: true, Stores: []string{"S1"}},
			want: []string{"M1", "M2"},
		},
		{
			name: "whitelist keeps only listed models",
			cfg:  FilterConfig{Enabled: true, WhitelistedModels: []string{"M2"}},
			want: []string{"M2"},
		},
		{
			name: "combined rules narrow in sequence",
			cfg:  FilterConfig{Enabled: true, MinThreshold: 5, Stores: []string{"S3"}},
			want: []string{"M1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyFilters(sampleRecords(), tt.cfg)
			var models []string
			for _, r := range got {
				models = append(models, r.ModelID)
			}
			if !reflect.DeepEqual(models, tt.want) {
				t.Errorf("expected models %v, got %v", tt.want, models)
			}
		})
	}
}

func TestPreviewFiltersCountIdentity(t *testing.T) {
	records := sampleRecords()
	cfg := FilterConfig{Enabled: true, MinThreshold: 4}

	p := PreviewFilters(records, cfg)

	if p.FilteredCount+p.HiddenCount != p.OriginalCount {
		t.Fatalf("filtered %d + hidden %d != original %d", p.FilteredCount, p.HiddenCount, p.OriginalCount)
	}
}

func TestPreviewFiltersThresholdScenario(t *testing.T) {
	records := []ChangeRecord{
		{StoreID: "S1", ModelID: "M1", Channel: "C1", PreviousCount: 10, CurrentCount: 7, Difference: -3, ChangeType: Decrease},
	}
	cfg := FilterConfig{Enabled: true, MinThreshold: 5}

	p := PreviewFilters(records, cfg)

	if p.OriginalCount != 1 || p.FilteredCount != 0 || p.HiddenCount != 1 {
		t.Fatalf("unexpected counts: %+v", p)
	}
	if p.ReductionPercentage != 100.0 {
		t.Errorf("expected reduction 100.0, got %f", p.ReductionPercentage)
	}
	if len(p.SampleHidden) != 1 || len(p.SampleVisible) != 0 {
		t.Errorf("unexpected samples: visible=%d hidden=%d", len(p.SampleVisible), len(p.SampleHidden))
	}
}

func TestPreviewFiltersEmptyInput(t *testing.T) {
	p := PreviewFilters(nil, FilterConfig{Enabled: true, MinThreshold: 5})

	if p.ReductionPercentage != 0 {
		t.Errorf("reduction must be 0 for empty input, got %f", p.ReductionPercentage)
	}
	if p.OriginalCount != 0 || p.FilteredCount != 0 || p.HiddenCount != 0 {
		t.Errorf("unexpected counts for empty input: %+v", p)
	}
}

func TestPreviewFiltersSampleCap(t *testing.T) {
	var records []ChangeRecord
	for i := 0; i < 20; i++ {
		records = append(records, ChangeRecord{
			StoreID: "S1", ModelID: "M1", Channel: "C1",
			Difference: 7, ChangeType: Increase,
		})
	}

	p := PreviewFilters(records, FilterConfig{Enabled: true})

	if len(p.SampleVisible) > previewSampleSize {
		t.Errorf("visible samples exceed cap: %d", len(p.SampleVisible))
	}
	if p.FilteredCount != 20 {
		t.Errorf("samples must not affect counts, got %d", p.FilteredCount)
	}
}

func TestFilterConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     FilterConfig
		wantErr bool
	}{
		{name: "defaults are valid", cfg: DefaultFilterConfig(), wantErr: false},
		{name: "negative min rejected", cfg: FilterConfig{MinThreshold: -1}, wantErr: true},
		{name: "max below min rejected", cfg: FilterConfig{MinThreshold: 10, MaxThreshold: intPtr(5)}, wantErr: true},
		{name: "max equal to min accepted", cfg: FilterConfig{MinThreshold: 5, MaxThreshold: intPtr(5)}, wantErr: false},
		{name: "nil max accepted", cfg: FilterConfig{MinThreshold: 100}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected a validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestFilterConfigCanonicalize(t *testing.T) {
	cfg := FilterConfig{
		WhitelistedModels: []string{" M1 ", "M1", "", "M2"},
		BlacklistedModels: []string{"M3", " "},
		Channels:          []string{"retail", "retail"},
		Stores:            nil,
	}

	cfg.Canonicalize()

	if !reflect.DeepEqual(cfg.WhitelistedModels, []string{"M1", "M2"}) {
		t.Errorf("unexpected whitelist: %v", cfg.WhitelistedModels)
	}
	if !reflect.DeepEqual(cfg.BlacklistedModels, []string{"M3"}) {
		t.Errorf("unexpected blacklist: %v", cfg.BlacklistedModels)
	}
	if !reflect.DeepEqual(cfg.Channels, []string{"retail"}) {
		t.Errorf("unexpected channels: %v", cfg.Channels)
	}
	if len(cfg.Stores) != 0 {
		t.Errorf("unexpected stores: %v", cfg.Stores)
	}
}
