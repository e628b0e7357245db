package audit

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestService_AppendRequiresTargetAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeAdmissionDenied}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{ApplicationID: "app-1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAdmissionDenied(context.Background(), "app-1", "u", "candidate", "retry_limit_reached"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogFinalized(context.Background(), "app-1", "c1", "rejected", "stale_cleanup", "system"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at filled")
	}
	if evs[0].Reason != "retry_limit_reached" {
		t.Fatalf("expected reason captured")
	}
	if len(repo.OfType(EventTypeStaleReaped)) != 1 {
		t.Fatalf("expected stale reap event")
	}
}

func TestPostgresRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).
		WithArgs(sqlmock.AnyArg(), "conflict_resolved", "app-1", "c1", "system", "", "failed_status_with_content",
			"call result conflict resolved", "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	svc := NewService(NewPostgresRepo(db))
	if err := svc.LogConflict(context.Background(), "app-1", "c1", "failed_status_with_content", "{}"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
