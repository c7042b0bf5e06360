// Package artifact writes the report files generated for completed jobs and
// serves them back by reference. References are plain file names relative to
// the per-job directory; the rest of the system never interprets them.
package artifact

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/V4T54L/display-watch/internal/domain"
)

// FileStore keeps one directory per job under a fixed base directory.
type FileStore struct {
	baseDir string
	logger  *slog.Logger
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(baseDir string, logger *slog.Logger) *FileStore {
	return &FileStore{baseDir: baseDir, logger: logger}
}

// Write emits the full artifact set for one job: the complete reconciliation
// report, the filtered alerts with both summaries, and the increase/decrease
// splits of the filtered records.
func (s *FileStore) Write(ctx context.Context, jobID string, weekNum int, result domain.JobResult) (domain.ArtifactSet, error) {
	dir := filepath.Join(s.baseDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.ArtifactSet{}, fmt.Errorf("creating artifact dir: %w", err)
	}

	set := domain.ArtifactSet{
		Report:    fmt.Sprintf("report-week-%d.csv", weekNum),
		Alerts:    fmt.Sprintf("alerts-week-%d.json", weekNum),
		Increases: fmt.Sprintf("increases-week-%d.csv", weekNum),
		Decreases: fmt.Sprintf("decreases-week-%d.csv", weekNum),
	}

	var increases, decreases []domain.ChangeRecord
	for _, r := range result.FilteredRecords {
		switch r.ChangeType {
		case domain.Increase:
			increases = append(increases, r)
		case domain.Decrease:
			decreases = append(decreases, r)
		}
	}

	if err := s.writeRecordsCSV(filepath.Join(dir, set.Report), result.AllRecords); err != nil {
		return domain.ArtifactSet{}, err
	}
	if err := s.writeAlertsJSON(filepath.Join(dir, set.Alerts), weekNum, result); err != nil {
		return domain.ArtifactSet{}, err
	}
	if err := s.writeRecordsCSV(filepath.Join(dir, set.Increases), increases); err != nil {
		return domain.ArtifactSet{}, err
	}
	if err := s.writeRecordsCSV(filepath.Join(dir, set.Decreases), decreases); err != nil {
		return domain.ArtifactSet{}, err
	}

	s.logger.Debug("artifacts written", "job_id", jobID, "dir", dir)
	return set, nil
}

// Open streams a stored artifact. The reference must be a plain file name
// issued by Write; anything that could leave the job directory is rejected.
func (s *FileStore) Open(ctx context.Context, jobID, ref string) (io.ReadCloser, error) {
	if jobID == "" || ref == "" {
		return nil, domain.ErrNotFound
	}
	if filepath.IsAbs(ref) || strings.ContainsAny(ref, `/\`) || strings.Contains(ref, "..") {
		return nil, domain.ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.baseDir, jobID, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("opening artifact %s/%s: %w", jobID, ref, err)
	}
	return f, nil
}

var recordHeader = []string{"store_id", "model_id", "channel", "previous_count", "current_count", "difference", "change_type"}

func (s *FileStore) writeRecordsCSV(path string, records []domain.ChangeRecord) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(recordHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.StoreID,
			r.ModelID,
			r.Channel,
			strconv.Itoa(r.PreviousCount),
			strconv.Itoa(r.CurrentCount),
			strconv.Itoa(r.Difference),
			string(r.ChangeType),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing record row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", filepath.Base(path), err)
	}
	return f.Sync()
}

// alertsDocument is the JSON layout of the alerts artifact.
type alertsDocument struct {
	WeekNum         int                   `json:"week_num"`
	Summary         domain.Summary        `json:"summary"`
	FilteredSummary domain.Summary        `json:"filtered_summary"`
	Records         []domain.ChangeRecord `json:"records"`
}

func (s *FileStore) writeAlertsJSON(path string, weekNum int, result domain.JobResult) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	doc := alertsDocument{
		WeekNum:         weekNum,
		Summary:         result.Summary,
		FilteredSummary: result.FilteredSummary,
		Records:         result.FilteredRecords,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding alerts: %w", err)
	}
	return f.Sync()
}
