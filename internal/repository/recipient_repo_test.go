package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestListQueuedReadsInPositionOrder(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "newsletter_recipients" WHERE campaign_id = \$1 AND status = \$2 ORDER BY position ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "subscriber_id", "email", "position", "status"}).
			AddRow("r1", "c1", "s1", "ada@example.com", 0, "queued").
			AddRow("r2", "c1", "s2", "grace@example.com", 1, "queued"))

	recipients, err := NewGormRecipientRepo(db).ListQueued(context.Background(), "c1", 2)
	if err != nil {
		t.Fatalf("ListQueued() error = %v", err)
	}
	if len(recipients) != 2 || recipients[0].ID != "r1" || recipients[1].Position != 1 || recipients[1].Email != "grace@example.com" {
		t.Fatalf("unexpected recipients: %+v", recipients)
	}
	assertExpectations(t, mock)
}

func TestListQueuedWithoutQuotaSkipsQuery(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)

	recipients, err := NewGormRecipientRepo(db).ListQueued(context.Background(), "c1", 0)
	if err != nil || recipients != nil {
		t.Fatalf("ListQueued() = %v, %v; want nil, nil", recipients, err)
	}
	assertExpectations(t, mock)
}

func TestCountSentSinceCountsOnlySentRows(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	since := time.Date(2026, 3, 1, 9, 10, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "newsletter_recipients" WHERE status = \$1 AND sent_at >= \$2`).
		WithArgs("sent", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := NewGormRecipientRepo(db).CountSentSince(context.Background(), since)
	if err != nil {
		t.Fatalf("CountSentSince() error = %v", err)
	}
	if count != 42 {
		t.Fatalf("count = %d, want 42", count)
	}
	assertExpectations(t, mock)
}
