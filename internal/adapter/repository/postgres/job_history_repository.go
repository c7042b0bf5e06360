package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
	"github.com/lib/pq"
)

const jobColumns = `job_id, week_num, status, created_at, completed_at, summary, filtered_summary, filtered_record_count, artifacts, error`

// JobHistoryRepository implements domain.JobHistoryRepository for PostgreSQL.
// Job rows live in the jobs table; the full and filtered change lists live in
// job_changes and are fetched lazily by job id.
type JobHistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJobHistoryRepository creates a new PostgreSQL job history repository.
func NewJobHistoryRepository(db *sql.DB, logger *slog.Logger) *JobHistoryRepository {
	return &JobHistoryRepository{db: db, logger: logger}
}

// SaveTerminal persists the job row and both change lists in one transaction.
// It upserts on job_id so redelivered jobs overwrite their previous attempt
// instead of failing, and loads the change rows through a temp table with the
// COPY protocol.
func (r *JobHistoryRepository) SaveTerminal(ctx context.Context, rec domain.JobRecord, all, filtered []domain.ChangeRecord) error {
	summaryJSON, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	filteredSummaryJSON, err := json.Marshal(rec.FilteredSummary)
	if err != nil {
		return fmt.Errorf("failed to marshal filtered summary: %w", err)
	}
	artifactsJSON, err := json.Marshal(rec.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to marshal artifacts: %w", err)
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	upsertJob := `
		INSERT INTO jobs (job_id, week_num, status, created_at, completed_at, summary, filtered_summary, filtered_record_count, artifacts, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id) DO UPDATE SET
			week_num = EXCLUDED.week_num,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			completed_at = EXCLUDED.completed_at,
			summary = EXCLUDED.summary,
			filtered_summary = EXCLUDED.filtered_summary,
			filtered_record_count = EXCLUDED.filtered_record_count,
			artifacts = EXCLUDED.artifacts,
			error = EXCLUDED.error;
	`
	_, err = txn.ExecContext(ctx, upsertJob,
		rec.JobID, rec.WeekNum, string(rec.Status), rec.CreatedAt, rec.CompletedAt,
		summaryJSON, filteredSummaryJSON, rec.FilteredRecordCount, artifactsJSON, rec.Error)
	if err != nil {
		return err
	}

	// Drop any change rows from a previous attempt before staging the new ones.
	_, err = txn.ExecContext(ctx, `DELETE FROM job_changes WHERE job_id = $1;`, rec.JobID)
	if err != nil {
		return err
	}

	tempTableName := "job_changes_temp_import"
	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE job_changes INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return err
	}

	stmt, err := txn.Prepare(pq.CopyIn(tempTableName, "job_id", "filtered", "position", "store_id", "model_id", "channel", "previous_count", "current_count", "difference", "change_type"))
	if err != nil {
		return err
	}

	if err := copyChanges(ctx, stmt, rec.JobID, false, all); err != nil {
		_ = stmt.Close()
		return err
	}
	if err := copyChanges(ctx, stmt, rec.JobID, true, filtered); err != nil {
		_ = stmt.Close()
		return err
	}

	if err := stmt.Close(); err != nil {
		return err
	}

	_, err = txn.ExecContext(ctx, `
		INSERT INTO job_changes (job_id, filtered, position, store_id, model_id, channel, previous_count, current_count, difference, change_type)
		SELECT job_id, filtered, position, store_id, model_id, channel, previous_count, current_count, difference, change_type FROM `+tempTableName+`;
	`)
	if err != nil {
		return err
	}

	return txn.Commit()
}

func copyChanges(ctx context.Context, stmt *sql.Stmt, jobID string, filtered bool, records []domain.ChangeRecord) error {
	for i, rec := range records {
		_, err := stmt.ExecContext(ctx, jobID, filtered, i, rec.StoreID, rec.ModelID, rec.Channel, rec.PreviousCount, rec.CurrentCount, rec.Difference, string(rec.ChangeType))
		if err != nil {
			return err
		}
	}
	return nil
}

// Get returns one history row, domain.ErrNotFound when absent.
func (r *JobHistoryRepository) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = $1;`, jobID)
	rec, err := scanJobRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns one page of history sorted by creation time descending plus
// the total row count for the same week filter.
func (r *JobHistoryRepository) List(ctx context.Context, page, limit int, week *int) ([]domain.JobRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	offset := (page - 1) * limit

	var (
		total int
		rows  *sql.Rows
		err   error
	)
	if week != nil {
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE week_num = $1;`, *week).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE week_num = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`, *week, limit, offset)
	} else {
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs;`).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2;`, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]domain.JobRecord, 0, limit)
	for rows.Next() {
		rec, err := scanJobRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Delete removes a job row; job_changes rows go with it via ON DELETE CASCADE.
func (r *JobHistoryRepository) Delete(ctx context.Context, jobID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1;`, jobID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Stats summarizes the stored history in a single aggregate query.
func (r *JobHistoryRepository) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(DISTINCT week_num)
		FROM jobs;
	`
	var stats domain.HistoryStats
	err := r.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Successful, &stats.Failed, &stats.DistinctWeeks)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// DeleteOlderThan removes terminal jobs created before the cutoff.
func (r *JobHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < $1 AND status IN ('completed', 'failed');`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Records fetches one of a job's change lists in its stored order.
func (r *JobHistoryRepository) Records(ctx context.Context, jobID string, filtered bool) ([]domain.ChangeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT store_id, model_id, channel, previous_count, current_count, difference, change_type
		FROM job_changes WHERE job_id = $1 AND filtered = $2 ORDER BY position;
	`, jobID, filtered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.ChangeRecord, 0)
	for rows.Next() {
		var rec domain.ChangeRecord
		var changeType string
		if err := rows.Scan(&rec.StoreID, &rec.ModelID, &rec.Channel, &rec.PreviousCount, &rec.CurrentCount, &rec.Difference, &changeType); err != nil {
			return nil, err
		}
		rec.ChangeType = domain.ChangeType(changeType)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// An empty list is valid for a stored job, so only report ErrNotFound
	// when the job row itself is missing.
	if len(records) == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE job_id = $1);`, jobID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
	}
	return records, nil
}

// LatestCompleted returns the most recent completed job, optionally for one
// week, domain.ErrNotFound when there is none.
func (r *JobHistoryRepository) LatestCompleted(ctx context.Context, week *int) (*domain.JobRecord, error) {
	var row *sql.Row
	if week != nil {
		row = r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = 'completed' AND week_num = $1 ORDER BY created_at DESC LIMIT 1;`, *week)
	} else {
		row = r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = 'completed' ORDER BY created_at DESC LIMIT 1;`)
	}
	rec, err := scanJobRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobRecord(row rowScanner) (*domain.JobRecord, error) {
	var (
		rec                 domain.JobRecord
		status              string
		completedAt         sql.NullTime
		summaryJSON         []byte
		filteredSummaryJSON []byte
		artifactsJSON       []byte
	)
	err := row.Scan(&rec.JobID, &rec.WeekNum, &status, &rec.CreatedAt, &completedAt,
		&summaryJSON, &filteredSummaryJSON, &rec.FilteredRecordCount, &artifactsJSON, &rec.Error)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.JobStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	if err := json.Unmarshal(summaryJSON, &rec.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	if err := json.Unmarshal(filteredSummaryJSON, &rec.FilteredSummary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal filtered summary: %w", err)
	}
	if err := json.Unmarshal(artifactsJSON, &rec.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
	}
	return &rec, nil
}
