package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/repository"
)

func TestMaintenanceRunUsesStoredRetention(t *testing.T) {
	t.Parallel()

	ledger := newMemoryLedger()
	var gotCutoff time.Time
	ledger.deleteOlderFn = func(cutoff time.Time) (int64, error) {
		gotCutoff = cutoff
		return 12, nil
	}

	settings := &fakeSettingsRepo{
		getIntFn: func(ctx context.Context, key string) (int, bool, error) {
			if key != repository.SettingAuditLogRetentionDays {
				t.Fatalf("key = %q", key)
			}
			return 30, true, nil
		},
	}

	m, err := NewMaintenance(settings, ledger, 90, nil)
	if err != nil {
		t.Fatalf("NewMaintenance() error = %v", err)
	}
	m.now = func() time.Time { return testEpoch }

	if got := m.Run(context.Background()); got != "purged 12 audit log entries older than 30 days" {
		t.Fatalf("Run() = %q", got)
	}
	if want := testEpoch.AddDate(0, 0, -30); !gotCutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", gotCutoff, want)
	}
}

func TestMaintenanceRunFallsBackToDefaultRetention(t *testing.T) {
	t.Parallel()

	m, err := NewMaintenance(&fakeSettingsRepo{}, newMemoryLedger(), 90, nil)
	if err != nil {
		t.Fatalf("NewMaintenance() error = %v", err)
	}

	if got := m.Run(context.Background()); got != "purged 0 audit log entries older than 90 days" {
		t.Fatalf("Run() = %q", got)
	}
}

func TestMaintenanceRunReportsFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		settings *fakeSettingsRepo
		deleteFn func(cutoff time.Time) (int64, error)
		want     string
	}{
		{
			name: "settings lookup fails",
			settings: &fakeSettingsRepo{getIntFn: func(ctx context.Context, key string) (int, bool, error) {
				return 0, false, errors.New("timeout")
			}},
			want: "maintenance failed: timeout",
		},
		{
			name:     "purge fails",
			settings: &fakeSettingsRepo{},
			deleteFn: func(cutoff time.Time) (int64, error) { return 0, errors.New("lock timeout") },
			want:     "maintenance failed: lock timeout",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ledger := newMemoryLedger()
			ledger.deleteOlderFn = tc.deleteFn

			m, err := NewMaintenance(tc.settings, ledger, 90, nil)
			if err != nil {
				t.Fatalf("NewMaintenance() error = %v", err)
			}
			if got := m.Run(context.Background()); got != tc.want {
				t.Fatalf("Run() = %q, want %q", got, tc.want)
			}
		})
	}
}
