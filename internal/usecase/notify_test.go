package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
	"github.com/V4T54L/display-watch/internal/domain/mocks"
)

type notifyEnv struct {
	history  *mocks.MockJobHistoryRepository
	contacts *mocks.MockContactDirectory
	notifier *mocks.MockNotifier
	uc       *NotifyUseCase
}

// newNotifyEnv seeds one completed job: decreases at S001 (owner on file)
// and S003 (no directory entry), an increase at S002, and one oversight
// address.
func newNotifyEnv(t *testing.T) *notifyEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &notifyEnv{
		history: &mocks.MockJobHistoryRepository{},
		contacts: &mocks.MockContactDirectory{
			Owners: map[string]domain.Contact{
				"S001": {
					StoreID:    "S001",
					StoreName:  "Harbor Electronics",
					Channel:    "retail",
					OwnerName:  "Dana Reyes",
					OwnerEmail: "dana@example.com",
					Active:     true,
				},
			},
			OversightList: []string{"ops@example.com"},
		},
		notifier: &mocks.MockNotifier{},
	}

	filtered := []domain.ChangeRecord{
		{StoreID: "S001", ModelID: "M-100", Channel: "retail", PreviousCount: 10, CurrentCount: 7, Difference: -3, ChangeType: domain.Decrease},
		{StoreID: "S001", ModelID: "M-300", Channel: "retail", PreviousCount: 4, CurrentCount: 2, Difference: -2, ChangeType: domain.Decrease},
		{StoreID: "S002", ModelID: "M-100", Channel: "online", PreviousCount: 6, CurrentCount: 8, Difference: 2, ChangeType: domain.Increase},
		{StoreID: "S003", ModelID: "M-200", Channel: "retail", PreviousCount: 5, CurrentCount: 1, Difference: -4, ChangeType: domain.Decrease},
	}
	seedCompletedJob(t, env.history, "job-1", 23, filtered, filtered)

	env.uc = NewNotifyUseCase(env.history, env.contacts, env.notifier, nil, logger)
	return env
}

func TestNotifyUseCase_BuildPreview(t *testing.T) {
	t.Run("Derives Store Owners And Oversight", func(t *testing.T) {
		env := newNotifyEnv(t)

		preview, err := env.uc.BuildPreview(context.Background(), "job-1")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if preview.StoreOwnerCount != 1 || preview.OversightCount != 1 {
			t.Fatalf("expected 1 owner and 1 oversight recipient, got %d and %d",
				preview.StoreOwnerCount, preview.OversightCount)
		}

		owner := preview.Recipients[0]
		if owner.ID != "owner:S001" {
			t.Errorf(`expected id "owner:S001", got %q`, owner.ID)
		}
		if owner.Email != "dana@example.com" || owner.Type != domain.RecipientStoreOwner {
			t.Errorf("unexpected owner recipient: %+v", owner)
		}
		if owner.DecreaseCount != 2 {
			t.Errorf("expected 2 decreases at S001, got %d", owner.DecreaseCount)
		}
		if owner.Subject != "Display Decrease Alert - Harbor Electronics - Week 23" {
			t.Errorf("unexpected owner subject %q", owner.Subject)
		}

		oversight := preview.Recipients[1]
		if oversight.ID != "oversight:ops@example.com" || oversight.Type != domain.RecipientOversight {
			t.Errorf("unexpected oversight recipient: %+v", oversight)
		}
		if oversight.StoresAffected != 2 {
			t.Errorf("expected 2 stores with decreases, got %d", oversight.StoresAffected)
		}
		if oversight.ModelsDecreased != 3 {
			t.Errorf("expected 3 distinct decreased models, got %d", oversight.ModelsDecreased)
		}
		if oversight.TotalDecrease != 9 {
			t.Errorf("expected total magnitude 9, got %d", oversight.TotalDecrease)
		}
		if oversight.Subject != "Weekly Display Decrease Summary - Week 23" {
			t.Errorf("unexpected oversight subject %q", oversight.Subject)
		}

		if preview.Subject != oversight.Subject {
			t.Errorf("expected the preview subject to match the digest, got %q", preview.Subject)
		}
		if !strings.Contains(preview.Body, "Week 23") {
			t.Errorf("expected the digest body to name the week, got %q", preview.Body)
		}
	})

	t.Run("Is Deterministic", func(t *testing.T) {
		env := newNotifyEnv(t)

		first, err := env.uc.BuildPreview(context.Background(), "job-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := env.uc.BuildPreview(context.Background(), "job-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !reflect.DeepEqual(first, second) {
			t.Error("expected identical previews for the same job and directory")
		}
	})

	t.Run("Rejects Jobs That Are Not Completed", func(t *testing.T) {
		env := newNotifyEnv(t)
		now := time.Now().UTC()
		rec := domain.JobRecord{
			JobID:       "job-failed",
			WeekNum:     23,
			Status:      domain.JobFailed,
			CreatedAt:   now,
			CompletedAt: &now,
			Error:       "pipeline stage load: file does not exist",
		}
		if err := env.history.SaveTerminal(context.Background(), rec, nil, nil); err != nil {
			t.Fatalf("seeding history: %v", err)
		}

		_, err := env.uc.BuildPreview(context.Background(), "job-failed")

		if !errors.Is(err, domain.ErrSendRejected) {
			t.Fatalf("expected ErrSendRejected, got %v", err)
		}
	})

	t.Run("Directory Errors Are Not Skipped", func(t *testing.T) {
		env := newNotifyEnv(t)
		env.contacts.OwnerErr = errors.New("database is down")

		_, err := env.uc.BuildPreview(context.Background(), "job-1")

		if err == nil || errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected a lookup error surfaced, got %v", err)
		}
	})
}

func TestNotifyUseCase_Send(t *testing.T) {
	t.Run("Delivers To All By Default", func(t *testing.T) {
		env := newNotifyEnv(t)

		report, err := env.uc.Send(context.Background(), "job-1", nil)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Requested != 2 || len(report.Sent) != 2 || len(report.Failed) != 0 {
			t.Errorf("unexpected report: %+v", report)
		}
		if env.notifier.DeliveredCount() != 2 {
			t.Errorf("expected 2 deliveries, got %d", env.notifier.DeliveredCount())
		}
		ownerBody := env.notifier.Bodies[0]
		if !strings.Contains(ownerBody, "M-100: 10 -> 7 (-3)") {
			t.Errorf("expected the owner body to list the decrease, got %q", ownerBody)
		}
	})

	t.Run("Selection Never Expands", func(t *testing.T) {
		env := newNotifyEnv(t)

		report, err := env.uc.Send(context.Background(), "job-1", []string{"oversight:ops@example.com", "owner:S999"})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Requested != 1 || len(report.Sent) != 1 {
			t.Errorf("expected exactly the matching recipient, got %+v", report)
		}
		if env.notifier.Delivered[0].Type != domain.RecipientOversight {
			t.Errorf("expected the oversight recipient, got %+v", env.notifier.Delivered[0])
		}
	})

	t.Run("Rejects Empty Effective Selection", func(t *testing.T) {
		env := newNotifyEnv(t)

		_, err := env.uc.Send(context.Background(), "job-1", []string{"owner:S999"})

		if !errors.Is(err, domain.ErrSendRejected) {
			t.Fatalf("expected ErrSendRejected, got %v", err)
		}
		if env.notifier.DeliveredCount() != 0 {
			t.Errorf("expected no deliveries, got %d", env.notifier.DeliveredCount())
		}
	})

	t.Run("Reports Per Recipient Failures", func(t *testing.T) {
		env := newNotifyEnv(t)
		env.notifier.FailEmails = map[string]error{"dana@example.com": errors.New("smtp 550")}

		report, err := env.uc.Send(context.Background(), "job-1", nil)

		if err != nil {
			t.Fatalf("expected no overall error, got %v", err)
		}
		if len(report.Failed) != 1 || report.Failed[0].RecipientID != "owner:S001" {
			t.Fatalf("expected the owner delivery reported failed, got %+v", report.Failed)
		}
		if !strings.Contains(report.Failed[0].Error, "550") {
			t.Errorf("expected the transport error recorded, got %q", report.Failed[0].Error)
		}
		if len(report.Sent) != 1 || report.Sent[0].RecipientID != "oversight:ops@example.com" {
			t.Errorf("expected the oversight delivery to still go out, got %+v", report.Sent)
		}
	})
}
