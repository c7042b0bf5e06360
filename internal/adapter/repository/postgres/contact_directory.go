package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/display-watch/internal/adapter/metrics"
	"github.com/V4T54L/display-watch/internal/domain"
)

type contactEntry struct {
	contact   *domain.Contact // nil means the store has no active owner
	expiresAt time.Time
}

// ContactDirectory implements the domain.ContactDirectory interface using
// PostgreSQL as the source of truth and an in-memory, time-based cache.
// The contact tables are maintained by an external CRM sync; this side only
// reads them.
type ContactDirectory struct {
	db       *sql.DB
	logger   *slog.Logger
	cacheTTL time.Duration
	metrics  *metrics.TrackerMetrics

	mu               sync.RWMutex
	owners           map[string]contactEntry
	oversight        []string
	oversightExpires time.Time
}

// NewContactDirectory creates a new instance of the PostgreSQL contact directory.
func NewContactDirectory(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.TrackerMetrics) *ContactDirectory {
	return &ContactDirectory{
		db:       db,
		logger:   logger,
		owners:   make(map[string]contactEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// OwnerByStore returns the active contact responsible for a store. It first
// checks a local cache and falls back to the database if the store is not
// found or the cache entry has expired. Missing owners are cached too, so a
// store with no contact does not hit the database on every notification.
func (d *ContactDirectory) OwnerByStore(ctx context.Context, storeID string) (*domain.Contact, error) {
	// 1. Check cache with a read lock
	d.mu.RLock()
	entry, found := d.owners[storeID]
	d.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if d.metrics != nil {
			d.metrics.ContactCacheHits.Inc()
		}
		return ownerResult(entry)
	}

	// 2. Cache miss or expired, query DB and update cache with a write lock
	if d.metrics != nil {
		d.metrics.ContactCacheMisses.Inc()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Double-check cache in case another goroutine populated it while waiting for the lock
	entry, found = d.owners[storeID]
	if found && time.Now().Before(entry.expiresAt) {
		return ownerResult(entry)
	}

	// 3. Query the database
	var contact domain.Contact
	query := `SELECT store_id, store_name, channel, owner_name, owner_email, active FROM store_contacts WHERE store_id = $1 AND active = true;`
	err := d.db.QueryRowContext(ctx, query, storeID).Scan(
		&contact.StoreID, &contact.StoreName, &contact.Channel,
		&contact.OwnerName, &contact.OwnerEmail, &contact.Active)
	if errors.Is(err, sql.ErrNoRows) {
		d.owners[storeID] = contactEntry{contact: nil, expiresAt: time.Now().Add(d.cacheTTL)}
		return nil, domain.ErrNotFound
	}
	if err != nil {
		d.logger.Error("failed to look up store contact in database", "store_id", storeID, "error", err)
		// Don't cache errors, let the next request retry from the DB
		return nil, err
	}

	// 4. Update cache
	d.owners[storeID] = contactEntry{contact: &contact, expiresAt: time.Now().Add(d.cacheTTL)}

	return &contact, nil
}

func ownerResult(entry contactEntry) (*domain.Contact, error) {
	if entry.contact == nil {
		return nil, domain.ErrNotFound
	}
	return entry.contact, nil
}

// Oversight returns the distinct active oversight email list, cached with the
// same TTL as owner lookups.
func (d *ContactDirectory) Oversight(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	if d.oversight != nil && time.Now().Before(d.oversightExpires) {
		emails := d.oversight
		d.mu.RUnlock()
		if d.metrics != nil {
			d.metrics.ContactCacheHits.Inc()
		}
		return emails, nil
	}
	d.mu.RUnlock()

	if d.metrics != nil {
		d.metrics.ContactCacheMisses.Inc()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.oversight != nil && time.Now().Before(d.oversightExpires) {
		return d.oversight, nil
	}

	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT email FROM oversight_contacts WHERE active = true ORDER BY email;`)
	if err != nil {
		d.logger.Error("failed to load oversight contacts from database", "error", err)
		return nil, err
	}
	defer rows.Close()

	emails := make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	d.oversight = emails
	d.oversightExpires = time.Now().Add(d.cacheTTL)

	return emails, nil
}
