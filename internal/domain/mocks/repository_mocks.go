package mocks

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
)

// ReclaimCall records the arguments of one ReclaimStale invocation.
type ReclaimCall struct {
	Consumer string
	MinIdle  time.Duration
	Count    int
}

// MockJobQueue is a mock implementation of domain.JobQueue for testing.
type MockJobQueue struct {
	mu           sync.Mutex
	Enqueued     []domain.JobRequest
	Acked        []string
	ClaimResult  []domain.QueuedJob
	Reclaimed    []domain.QueuedJob
	ReclaimCalls []ReclaimCall
	QueueStatus  *domain.QueueStatus
	EnqueueErr   error
	ClaimErr     error
	AckErr       error
	ReclaimErr   error
	StatusErr    error
}

func (m *MockJobQueue) Enqueue(ctx context.Context, req domain.JobRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.Enqueued = append(m.Enqueued, req)
	return nil
}

func (m *MockJobQueue) Claim(ctx context.Context, consumer string, count int, block time.Duration) ([]domain.QueuedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	jobs := m.ClaimResult
	m.ClaimResult = nil
	return jobs, nil
}

func (m *MockJobQueue) Ack(ctx context.Context, deliveryIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.Acked = append(m.Acked, deliveryIDs...)
	return nil
}

func (m *MockJobQueue) ReclaimStale(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]domain.QueuedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReclaimCalls = append(m.ReclaimCalls, ReclaimCall{Consumer: consumer, MinIdle: minIdle, Count: count})
	if m.ReclaimErr != nil {
		return nil, m.ReclaimErr
	}
	jobs := m.Reclaimed
	m.Reclaimed = nil
	return jobs, nil
}

func (m *MockJobQueue) Status(ctx context.Context) (*domain.QueueStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	if m.QueueStatus == nil {
		return &domain.QueueStatus{}, nil
	}
	return m.QueueStatus, nil
}

// EnqueuedCount returns how many requests were enqueued so far.
func (m *MockJobQueue) EnqueuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Enqueued)
}

// ListCall records the paging arguments of one List invocation.
type ListCall struct {
	Page  int
	Limit int
	Week  *int
}

// MockJobHistoryRepository is a mock implementation of domain.JobHistoryRepository.
type MockJobHistoryRepository struct {
	mu            sync.Mutex
	Saved         []domain.JobRecord
	SavedAll      map[string][]domain.ChangeRecord
	SavedFiltered map[string][]domain.ChangeRecord
	Deleted       []string
	ListCalls     []ListCall
	Cutoffs       []time.Time
	StatsResult   *domain.HistoryStats
	CleanupResult int64
	LatestResult  *domain.JobRecord
	SaveErr       error
	GetErr        error
	ListErr       error
	DeleteErr     error
	StatsErr      error
	CleanupErr    error
	RecordsErr    error
	LatestErr     error
}

func (m *MockJobHistoryRepository) SaveTerminal(ctx context.Context, rec domain.JobRecord, all, filtered []domain.ChangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saved = append(m.Saved, rec)
	if m.SavedAll == nil {
		m.SavedAll = make(map[string][]domain.ChangeRecord)
		m.SavedFiltered = make(map[string][]domain.ChangeRecord)
	}
	m.SavedAll[rec.JobID] = all
	m.SavedFiltered[rec.JobID] = filtered
	return nil
}

func (m *MockJobHistoryRepository) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for i := range m.Saved {
		if m.Saved[i].JobID == jobID {
			rec := m.Saved[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockJobHistoryRepository) List(ctx context.Context, page, limit int, week *int) ([]domain.JobRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls = append(m.ListCalls, ListCall{Page: page, Limit: limit, Week: week})
	if m.ListErr != nil {
		return nil, 0, m.ListErr
	}
	var out []domain.JobRecord
	for _, rec := range m.Saved {
		if week != nil && rec.WeekNum != *week {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (m *MockJobHistoryRepository) Delete(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for i := range m.Saved {
		if m.Saved[i].JobID == jobID {
			m.Saved = append(m.Saved[:i], m.Saved[i+1:]...)
			m.Deleted = append(m.Deleted, jobID)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockJobHistoryRepository) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatsErr != nil {
		return nil, m.StatsErr
	}
	if m.StatsResult != nil {
		return m.StatsResult, nil
	}
	stats := &domain.HistoryStats{Total: len(m.Saved)}
	weeks := make(map[int]struct{})
	for _, rec := range m.Saved {
		switch rec.Status {
		case domain.JobCompleted:
			stats.Successful++
		case domain.JobFailed:
			stats.Failed++
		}
		weeks[rec.WeekNum] = struct{}{}
	}
	stats.DistinctWeeks = len(weeks)
	return stats, nil
}

func (m *MockJobHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cutoffs = append(m.Cutoffs, cutoff)
	if m.CleanupErr != nil {
		return 0, m.CleanupErr
	}
	return m.CleanupResult, nil
}

func (m *MockJobHistoryRepository) Records(ctx context.Context, jobID string, filtered bool) ([]domain.ChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordsErr != nil {
		return nil, m.RecordsErr
	}
	source := m.SavedAll
	if filtered {
		source = m.SavedFiltered
	}
	records, ok := source[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return records, nil
}

func (m *MockJobHistoryRepository) LatestCompleted(ctx context.Context, week *int) (*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LatestErr != nil {
		return nil, m.LatestErr
	}
	if m.LatestResult != nil {
		return m.LatestResult, nil
	}
	for i := len(m.Saved) - 1; i >= 0; i-- {
		rec := m.Saved[i]
		if rec.Status != domain.JobCompleted {
			continue
		}
		if week != nil && rec.WeekNum != *week {
			continue
		}
		return &rec, nil
	}
	return nil, domain.ErrNotFound
}

// MockFilterConfigRepository is a mock implementation of domain.FilterConfigRepository.
type MockFilterConfigRepository struct {
	mu      sync.Mutex
	Stored  *domain.FilterConfig
	LoadErr error
	SaveErr error
	Saves   int
}

func (m *MockFilterConfigRepository) Load(ctx context.Context) (domain.FilterConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return domain.FilterConfig{}, m.LoadErr
	}
	if m.Stored == nil {
		return domain.DefaultFilterConfig(), nil
	}
	return *m.Stored, nil
}

func (m *MockFilterConfigRepository) Save(ctx context.Context, cfg domain.FilterConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Stored = &cfg
	m.Saves++
	return nil
}

// MockContactDirectory is a mock implementation of domain.ContactDirectory.
type MockContactDirectory struct {
	mu            sync.Mutex
	Owners        map[string]domain.Contact
	OversightList []string
	OwnerErr      error
	OversightErr  error
	OwnerLookups  []string
}

func (m *MockContactDirectory) OwnerByStore(ctx context.Context, storeID string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OwnerLookups = append(m.OwnerLookups, storeID)
	if m.OwnerErr != nil {
		return nil, m.OwnerErr
	}
	contact, ok := m.Owners[storeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &contact, nil
}

func (m *MockContactDirectory) Oversight(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OversightErr != nil {
		return nil, m.OversightErr
	}
	return m.OversightList, nil
}

// MockArtifactStore is a mock implementation of domain.ArtifactStore.
type MockArtifactStore struct {
	mu       sync.Mutex
	Written  map[string]domain.ArtifactSet
	Contents map[string]string
	WriteErr error
	OpenErr  error
}

func (m *MockArtifactStore) Write(ctx context.Context, jobID string, weekNum int, result domain.JobResult) (domain.ArtifactSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return domain.ArtifactSet{}, m.WriteErr
	}
	week := strconv.Itoa(weekNum)
	set := domain.ArtifactSet{
		Report:    "report-week-" + week + ".csv",
		Alerts:    "alerts-week-" + week + ".json",
		Increases: "increases-week-" + week + ".csv",
		Decreases: "decreases-week-" + week + ".csv",
	}
	if m.Written == nil {
		m.Written = make(map[string]domain.ArtifactSet)
	}
	m.Written[jobID] = set
	return set, nil
}

func (m *MockArtifactStore) Open(ctx context.Context, jobID, ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	content, ok := m.Contents[jobID+"/"+ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// MockSubmissionJournal is a mock implementation of domain.SubmissionJournal.
type MockSubmissionJournal struct {
	mu          sync.Mutex
	Journaled   []domain.JobRequest
	Truncations int
	WriteErr    error
	ReplayErr   error
	TruncateErr error
}

func (m *MockSubmissionJournal) Write(ctx context.Context, req domain.JobRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Journaled = append(m.Journaled, req)
	return nil
}

func (m *MockSubmissionJournal) Replay(ctx context.Context, handler func(req domain.JobRequest) error) error {
	m.mu.Lock()
	journaled := make([]domain.JobRequest, len(m.Journaled))
	copy(journaled, m.Journaled)
	err := m.ReplayErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	for _, req := range journaled {
		if err := handler(req); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockSubmissionJournal) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TruncateErr != nil {
		return m.TruncateErr
	}
	m.Truncations++
	m.Journaled = nil
	return nil
}

// JournaledCount returns how many requests sit in the journal.
func (m *MockSubmissionJournal) JournaledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Journaled)
}

// MockNotifier is a mock implementation of domain.Notifier.
type MockNotifier struct {
	mu         sync.Mutex
	Delivered  []domain.Recipient
	Bodies     []string
	FailEmails map[string]error
}

func (m *MockNotifier) Notify(ctx context.Context, recipient domain.Recipient, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailEmails[recipient.Email]; ok {
		return err
	}
	m.Delivered = append(m.Delivered, recipient)
	m.Bodies = append(m.Bodies, body)
	return nil
}

// DeliveredCount returns how many notifications went through.
func (m *MockNotifier) DeliveredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Delivered)
}

// MockJobEventPublisher is a mock implementation of domain.JobEventPublisher.
type MockJobEventPublisher struct {
	mu     sync.Mutex
	Events []domain.Job
}

func (m *MockJobEventPublisher) PublishJobUpdate(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, *job)
}

// EventCount returns how many updates were published.
func (m *MockJobEventPublisher) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}
