package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/V4T54L/display-watch/internal/adapter/metrics"
	"github.com/V4T54L/display-watch/internal/domain"
)

const oversightTopStores = 10

// NotifyUseCase derives the recipient set for a completed job and drives
// selective sends. Derivation is a pure function of the persisted job and the
// contact directory, so a resend from history reproduces the original run.
type NotifyUseCase struct {
	history  domain.JobHistoryRepository
	contacts domain.ContactDirectory
	notifier domain.Notifier
	metrics  *metrics.TrackerMetrics
	logger   *slog.Logger
}

// NewNotifyUseCase creates a new NotifyUseCase.
func NewNotifyUseCase(history domain.JobHistoryRepository, contacts domain.ContactDirectory, notifier domain.Notifier, m *metrics.TrackerMetrics, logger *slog.Logger) *NotifyUseCase {
	return &NotifyUseCase{
		history:  history,
		contacts: contacts,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// sendPlan is one full derivation: recipients plus the rendered bodies they
// would receive. BuildPreview exposes it read-only; Send executes it.
type sendPlan struct {
	record     *domain.JobRecord
	recipients []domain.Recipient
	bodies     map[string]string
	subject    string
	body       string
}

// BuildPreview derives the recipient set for a completed job without sending
// anything. Only stores with at least one decrease in the filtered records
// produce a store-owner recipient; stores missing from the directory are
// skipped. The oversight audience is always included.
func (uc *NotifyUseCase) BuildPreview(ctx context.Context, jobID string) (*domain.NotificationPreview, error) {
	plan, err := uc.plan(ctx, jobID)
	if err != nil {
		return nil, err
	}

	preview := &domain.NotificationPreview{
		JobID:      plan.record.JobID,
		WeekNum:    plan.record.WeekNum,
		Subject:    plan.subject,
		Body:       plan.body,
		Recipients: plan.recipients,
	}
	for _, r := range plan.recipients {
		switch r.Type {
		case domain.RecipientStoreOwner:
			preview.StoreOwnerCount++
		case domain.RecipientOversight:
			preview.OversightCount++
		}
	}
	return preview, nil
}

// Send delivers the job's notifications to the selected recipients. An empty
// id list selects every derived recipient; a non-empty list only narrows the
// set, unknown ids match nothing. An empty effective selection is rejected so
// silent non-delivery cannot pass for success.
func (uc *NotifyUseCase) Send(ctx context.Context, jobID string, recipientIDs []string) (*domain.NotificationReport, error) {
	plan, err := uc.plan(ctx, jobID)
	if err != nil {
		return nil, err
	}

	selected := plan.recipients
	if len(recipientIDs) > 0 {
		wanted := make(map[string]struct{}, len(recipientIDs))
		for _, id := range recipientIDs {
			wanted[id] = struct{}{}
		}
		selected = selected[:0:0]
		for _, r := range plan.recipients {
			if _, ok := wanted[r.ID]; ok {
				selected = append(selected, r)
			}
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no recipients selected for job %s: %w", jobID, domain.ErrSendRejected)
	}

	report := &domain.NotificationReport{
		JobID:     jobID,
		Requested: len(selected),
		Sent:      []domain.SendOutcome{},
		Failed:    []domain.SendOutcome{},
	}
	for _, r := range selected {
		outcome := domain.SendOutcome{RecipientID: r.ID, Email: r.Email}
		if err := uc.notifier.Notify(ctx, r, plan.bodies[r.ID]); err != nil {
			outcome.Error = err.Error()
			report.Failed = append(report.Failed, outcome)
			uc.countDelivery("failed")
			uc.logger.Warn("notification delivery failed", "job_id", jobID, "recipient_id", r.ID, "error", err)
			continue
		}
		report.Sent = append(report.Sent, outcome)
		uc.countDelivery("sent")
	}

	uc.logger.Info("notifications dispatched",
		"job_id", jobID,
		"requested", report.Requested,
		"sent", len(report.Sent),
		"failed", len(report.Failed),
	)
	return report, nil
}

// storeDecreases is the per-store slice of Decrease records, in stored order.
type storeDecreases struct {
	storeID string
	records []domain.ChangeRecord
}

func (uc *NotifyUseCase) plan(ctx context.Context, jobID string) (*sendPlan, error) {
	rec, err := uc.history.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.JobCompleted {
		return nil, fmt.Errorf("job %s is %s, notifications need a completed job: %w", jobID, rec.Status, domain.ErrSendRejected)
	}

	filtered, err := uc.history.Records(ctx, jobID, true)
	if err != nil {
		return nil, fmt.Errorf("loading filtered records: %w", err)
	}

	// Group the filtered decreases by store. Records are stored in
	// store/model/channel order, so group order is already deterministic.
	var groups []storeDecreases
	index := make(map[string]int)
	for _, r := range filtered {
		if r.ChangeType != domain.Decrease {
			continue
		}
		i, ok := index[r.StoreID]
		if !ok {
			i = len(groups)
			index[r.StoreID] = i
			groups = append(groups, storeDecreases{storeID: r.StoreID})
		}
		groups[i].records = append(groups[i].records, r)
	}

	stats := decreaseStats(groups)
	plan := &sendPlan{
		record:  rec,
		bodies:  make(map[string]string),
		subject: oversightSubject(rec.WeekNum),
		body:    oversightBody(rec.WeekNum, stats, groups),
	}

	for _, g := range groups {
		contact, err := uc.contacts.OwnerByStore(ctx, g.storeID)
		if errors.Is(err, domain.ErrNotFound) {
			uc.logger.Warn("no owner contact for store, skipping", "job_id", jobID, "store_id", g.storeID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving owner for store %s: %w", g.storeID, err)
		}
		r := domain.Recipient{
			ID:            "owner:" + g.storeID,
			Name:          contact.OwnerName,
			Email:         contact.OwnerEmail,
			Type:          domain.RecipientStoreOwner,
			Subject:       ownerSubject(storeLabel(contact), rec.WeekNum),
			Stores:        []string{g.storeID},
			DecreaseCount: len(g.records),
		}
		plan.recipients = append(plan.recipients, r)
		plan.bodies[r.ID] = ownerBody(contact, rec.WeekNum, g.records)
	}

	oversight, err := uc.contacts.Oversight(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving oversight recipients: %w", err)
	}
	for _, email := range oversight {
		r := domain.Recipient{
			ID:              "oversight:" + email,
			Name:            "Oversight",
			Email:           email,
			Type:            domain.RecipientOversight,
			Subject:         plan.subject,
			StoresAffected:  stats.stores,
			ModelsDecreased: stats.models,
			TotalDecrease:   stats.total,
		}
		plan.recipients = append(plan.recipients, r)
		plan.bodies[r.ID] = plan.body
	}

	return plan, nil
}

func (uc *NotifyUseCase) countDelivery(outcome string) {
	if uc.metrics != nil {
		uc.metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
	}
}

// decreaseTotals aggregates the filtered decreases for the oversight digest.
type decreaseTotals struct {
	stores int
	models int
	total  int
}

func decreaseStats(groups []storeDecreases) decreaseTotals {
	models := make(map[string]struct{})
	t := decreaseTotals{stores: len(groups)}
	for _, g := range groups {
		for _, r := range g.records {
			models[r.ModelID] = struct{}{}
			t.total += -r.Difference
		}
	}
	t.models = len(models)
	return t
}

func storeLabel(c *domain.Contact) string {
	if c.StoreName != "" {
		return c.StoreName
	}
	return c.StoreID
}

func ownerSubject(store string, week int) string {
	return fmt.Sprintf("Display Decrease Alert - %s - Week %d", store, week)
}

func oversightSubject(week int) string {
	return fmt.Sprintf("Weekly Display Decrease Summary - Week %d", week)
}

// ownerBody renders the plain-text alert for one store owner. Content depends
// only on the contact row and the decrease records, so resends are identical.
func ownerBody(c *domain.Contact, week int, decreases []domain.ChangeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Display Decrease Alert - Week %d\n\n", week)
	fmt.Fprintf(&b, "Dear %s,\n\n", c.OwnerName)
	fmt.Fprintf(&b, "Display counts decreased at %s (store %s", storeLabel(c), c.StoreID)
	if c.Channel != "" {
		fmt.Fprintf(&b, ", channel %s", c.Channel)
	}
	b.WriteString("):\n\n")
	for _, r := range decreases {
		fmt.Fprintf(&b, "  %s: %d -> %d (%d)\n", r.ModelID, r.PreviousCount, r.CurrentCount, r.Difference)
	}
	b.WriteString("\nPlease verify the counts above and restore missing display units.\n")
	return b.String()
}

// oversightBody renders the plain-text weekly digest sent to oversight.
func oversightBody(week int, stats decreaseTotals, groups []storeDecreases) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly Display Decrease Summary - Week %d\n\n", week)
	fmt.Fprintf(&b, "Stores affected:  %d\n", stats.stores)
	fmt.Fprintf(&b, "Models decreased: %d\n", stats.models)
	fmt.Fprintf(&b, "Total decrease:   %d\n", stats.total)

	if len(groups) > 0 {
		type storeTotal struct {
			storeID string
			total   int
		}
		totals := make([]storeTotal, 0, len(groups))
		for _, g := range groups {
			t := storeTotal{storeID: g.storeID}
			for _, r := range g.records {
				t.total += -r.Difference
			}
			totals = append(totals, t)
		}
		sort.Slice(totals, func(i, j int) bool {
			if totals[i].total != totals[j].total {
				return totals[i].total > totals[j].total
			}
			return totals[i].storeID < totals[j].storeID
		})
		if len(totals) > oversightTopStores {
			totals = totals[:oversightTopStores]
		}
		b.WriteString("\nTop stores by decrease:\n")
		for _, t := range totals {
			fmt.Fprintf(&b, "  %s: %d\n", t.storeID, t.total)
		}
	}

	b.WriteString("\nStore owners have been notified of decreases at their locations.\n")
	return b.String()
}
