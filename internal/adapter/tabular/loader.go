// Package tabular parses delimited snapshot files into domain Snapshots.
// It is the only component that ever sees raw input rows; everything past
// it operates on validated, typed records.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/V4T54L/display-watch/internal/domain"
)

// Column aliases accepted in the header row, after normalization
// (lowercased, trimmed, spaces collapsed to underscores). The channel
// column is optional; rows without one land on domain.DefaultChannel.
var (
	storeAliases = []string{"store_id", "store", "elux_id"}
	modelAliases = []string{"model_id", "model"}
	countAliases = []string{"count", "value", "qty"}
)

const channelColumn = "channel"

// Loader reads snapshot files from a fixed base directory.
type Loader struct {
	baseDir string
	logger  *slog.Logger
}

// NewLoader creates a Loader rooted at baseDir.
func NewLoader(baseDir string, logger *slog.Logger) *Loader {
	return &Loader{baseDir: baseDir, logger: logger}
}

// LoadSnapshot opens the named file under the base directory and parses it.
// Names that escape the base directory are rejected.
func (l *Loader) LoadSnapshot(ctx context.Context, name string) (*domain.Snapshot, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("%s does not exist", name)}
		}
		return nil, fmt.Errorf("opening snapshot %s: %w", name, err)
	}
	defer f.Close()

	snapshot, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", name, err)
	}

	l.logger.Debug("snapshot loaded", "file", name, "keys", snapshot.Len())
	return snapshot, nil
}

// Stat verifies that the named file resolves under the base directory and
// exists, without reading it. Submission uses it to reject bad references
// before a job is queued; field names the request field being validated.
func (l *Loader) Stat(name, field string) error {
	path, err := l.resolve(name)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			verr.Field = field
		}
		return err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("%s does not exist", name)}
	}
	if err != nil {
		return fmt.Errorf("stat snapshot %s: %w", name, err)
	}
	if info.IsDir() {
		return &domain.ValidationError{Field: field, Reason: "must be a file"}
	}
	return nil
}

func (l *Loader) resolve(name string) (string, error) {
	if name == "" {
		return "", &domain.ValidationError{Field: "file", Reason: "must not be empty"}
	}
	if filepath.IsAbs(name) || strings.Contains(name, "..") {
		return "", &domain.ValidationError{Field: "file", Reason: "must be a plain name inside the input directory"}
	}
	return filepath.Join(l.baseDir, name), nil
}

// Parse reads one CSV snapshot from r. The first row must be a header
// naming at least a store, a model and a count column. Each data row is
// validated before aggregation; the first bad row aborts the parse with a
// row-indexed error, so the core never receives a partially valid Snapshot.
func Parse(r io.Reader) (*domain.Snapshot, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &domain.ValidationError{Field: "header", Reason: "file is empty"}
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []domain.SnapshotRow
	for dataRow := 1; ; dataRow++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.ValidationError{Row: dataRow, Field: "row", Reason: err.Error()}
		}

		row, err := parseRow(fields, cols, dataRow)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return domain.NewSnapshot(rows), nil
}

// columnIndexes locates the relevant columns in one header. channel is -1
// when the file carries no channel column.
type columnIndexes struct {
	store   int
	model   int
	channel int
	count   int
}

func mapColumns(header []string) (columnIndexes, error) {
	byName := make(map[string]int, len(header))
	for i, name := range header {
		byName[normalizeHeader(name)] = i
	}

	cols := columnIndexes{channel: -1}
	var ok bool
	if cols.store, ok = firstMatch(byName, storeAliases); !ok {
		return cols, &domain.ValidationError{Field: "header", Reason: "no store column (expected one of store_id, store, elux_id)"}
	}
	if cols.model, ok = firstMatch(byName, modelAliases); !ok {
		return cols, &domain.ValidationError{Field: "header", Reason: "no model column (expected one of model_id, model)"}
	}
	if cols.count, ok = firstMatch(byName, countAliases); !ok {
		return cols, &domain.ValidationError{Field: "header", Reason: "no count column (expected one of count, value, qty)"}
	}
	if idx, found := byName[channelColumn]; found {
		cols.channel = idx
	}
	return cols, nil
}

func parseRow(fields []string, cols columnIndexes, row int) (domain.SnapshotRow, error) {
	var out domain.SnapshotRow

	store, err := requiredField(fields, cols.store, "store_id", row)
	if err != nil {
		return out, err
	}
	model, err := requiredField(fields, cols.model, "model_id", row)
	if err != nil {
		return out, err
	}

	channel := domain.DefaultChannel
	if cols.channel >= 0 && cols.channel < len(fields) {
		if v := strings.TrimSpace(fields[cols.channel]); v != "" {
			channel = v
		}
	}

	raw, err := requiredField(fields, cols.count, "count", row)
	if err != nil {
		return out, err
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return out, &domain.ValidationError{Row: row, Field: "count", Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	if count < 0 {
		return out, &domain.ValidationError{Row: row, Field: "count", Reason: "must not be negative"}
	}

	out.Key = domain.ChangeKey{StoreID: store, ModelID: model, Channel: channel}
	out.Count = count
	return out, nil
}

func requiredField(fields []string, idx int, name string, row int) (string, error) {
	if idx >= len(fields) {
		return "", &domain.ValidationError{Row: row, Field: name, Reason: "column missing from row"}
	}
	v := strings.TrimSpace(fields[idx])
	if v == "" {
		return "", &domain.ValidationError{Row: row, Field: name, Reason: "must not be empty"}
	}
	return v, nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "_")
}

func firstMatch(byName map[string]int, aliases []string) (int, bool) {
	for _, alias := range aliases {
		if idx, ok := byName[alias]; ok {
			return idx, true
		}
	}
	return 0, false
}
