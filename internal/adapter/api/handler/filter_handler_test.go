package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
	"github.com/V4T54L/display-watch/internal/domain/mocks"
	"github.com/V4T54L/display-watch/internal/usecase"
)

type filterHandlerEnv struct {
	repo    *mocks.MockFilterConfigRepository
	history *mocks.MockJobHistoryRepository
	handler *FilterHandler
}

func newFilterHandlerEnv(t *testing.T) *filterHandlerEnv {
	t.Helper()
	env := &filterHandlerEnv{
		repo:    &mocks.MockFilterConfigRepository{},
		history: &mocks.MockJobHistoryRepository{},
	}
	logger := discardLogger()
	env.handler = NewFilterHandler(usecase.NewFilterConfigUseCase(env.repo, env.history, logger), logger)
	return env
}

func (env *filterHandlerEnv) seedCompletedJob(t *testing.T) {
	t.Helper()
	all := []domain.ChangeRecord{
		{StoreID: "S001", ModelID: "M-100", Channel: "retail", PreviousCount: 10, CurrentCount: 7, Difference: -3, ChangeType: domain.Decrease},
		{StoreID: "S001", ModelID: "M-200", Channel: "retail", PreviousCount: 5, CurrentCount: 5, Difference: 0, ChangeType: domain.Unchanged},
		{StoreID: "S002", ModelID: "M-300", Channel: "online", PreviousCount: 4, CurrentCount: 6, Difference: 2, ChangeType: domain.Increase},
	}
	rec := domain.JobRecord{JobID: "job-1", WeekNum: 23, Status: domain.JobCompleted, CreatedAt: time.Now().UTC()}
	if err := env.history.SaveTerminal(context.Background(), rec, all, all[:1]); err != nil {
		t.Fatalf("failed to seed history: %v", err)
	}
}

func TestFilterHandler_GetAndUpdate(t *testing.T) {
	t.Run("Get Returns The Stored Configuration", func(t *testing.T) {
		env := newFilterHandlerEnv(t)
		stored := domain.DefaultFilterConfig()
		stored.Enabled = true
		stored.MinThreshold = 3
		env.repo.Stored = &stored

		req := httptest.NewRequest(http.MethodGet, "/api/filters", nil)
		rr := httptest.NewRecorder()

		env.handler.Get(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
		}
		var cfg domain.FilterConfig
		if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !cfg.Enabled || cfg.MinThreshold != 3 {
			t.Errorf("unexpected configuration: %+v", cfg)
		}
	})

	t.Run("Update Persists A Canonical Configuration", func(t *testing.T) {
		env := newFilterHandlerEnv(t)
		body := `{"enabled":true,"min_threshold":2,"whitelisted_models":[" M-100 ","M-100",""]}`
		req := httptest.NewRequest(http.MethodPut, "/api/filters", strings.NewReader(body))
		rr := httptest.NewRecorder()

		env.handler.Update(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
		}
		var cfg domain.FilterConfig
		if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !reflect.DeepEqual(cfg.WhitelistedModels, []string{"M-100"}) {
			t.Errorf("expected the whitelist deduplicated, got %v", cfg.WhitelistedModels)
		}
		if env.repo.Saves != 1 {
			t.Errorf("expected one save, got %d", env.repo.Saves)
		}
	})

	t.Run("Update Rejects Inverted Thresholds", func(t *testing.T) {
		env := newFilterHandlerEnv(t)
		body := `{"enabled":true,"min_threshold":5,"max_threshold":1}`
		req := httptest.NewRequest(http.MethodPut, "/api/filters", strings.NewReader(body))
		rr := httptest.NewRecorder()

		env.handler.Update(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "max_threshold") {
			t.Errorf("expected the error to name max_threshold, got %s", rr.Body.String())
		}
		if env.repo.Saves != 0 {
			t.Errorf("expected no save, got %d", env.repo.Saves)
		}
	})
}

func TestFilterHandler_ToggleAndReset(t *testing.T) {
	t.Run("Toggle Flips The Enabled Flag", func(t *testing.T) {
		env := newFilterHandlerEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/filters/toggle", nil)
		rr := httptest.NewRecorder()

		env.handler.Toggle(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
		}
		var cfg domain.FilterConfig
		if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !cfg.Enabled {
			t.Error("expected filtering enabled after the toggle")
		}
	})

	t.Run("Reset Restores The Defaults", func(t *testing.T) {
		env := newFilterHandlerEnv(t)
		stored := domain.DefaultFilterConfig()
		stored.Enabled = true
		stored.MinThreshold = 9
		env.repo.Stored = &stored

		req := httptest.NewRequest(http.MethodPost, "/api/filters/reset", nil)
		rr := httptest.NewRecorder()

		env.handler.Reset(rr, req)

		var cfg domain.FilterConfig
		if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if cfg.Enabled || cfg.MinThreshold != domain.DefaultFilterConfig().MinThreshold {
			t.Errorf("expected the default configuration, got %+v", cfg)
		}
	})
}

func TestFilterHandler_Preview(t *testing.T) {
	t.Run("Replays A Candidate Configuration", func(t *testing.T) {
		env := newFilterHandlerEnv(t)
		env.seedCompletedJob(t)

		body := `{"config":{"enabled":true,"min_threshold":3}}`
		req := httptest.NewRequest(http.MethodPost, "/api/filters/preview", strings.NewReader(body))
		rr := httptest.NewRecorder()

		env.handler.Preview(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
		}
		var preview domain.FilterPreview
		if err := json.Unmarshal(rr.Body.Bytes(), &preview); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if preview.OriginalCount != 3 || preview.FilteredCount != 1 || preview.HiddenCount != 2 {
			t.Errorf("unexpected preview counts: %+v", preview)
		}
	})

	t.Run("Answers Not Found Without A Completed Job", func(t *testing.T) {
		env := newFilterHandlerEnv(t)
		body := `{"config":{"enabled":true,"min_threshold":3}}`
		req := httptest.NewRequest(http.MethodPost, "/api/filters/preview", strings.NewReader(body))
		rr := httptest.NewRecorder()

		env.handler.Preview(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
		}
	})
}

func TestFilterHandler_Options(t *testing.T) {
	env := newFilterHandlerEnv(t)
	env.seedCompletedJob(t)

	req := httptest.NewRequest(http.MethodGet, "/api/filters/options?q=m-1", nil)
	rr := httptest.NewRecorder()

	env.handler.Options(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var opts domain.FilterOptions
	if err := json.Unmarshal(rr.Body.Bytes(), &opts); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !reflect.DeepEqual(opts.Models, []string{"M-100"}) {
		t.Errorf("expected only M-100 to match, got %v", opts.Models)
	}
}
