package cleanup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type mockSessionDeleter struct {
	deleteFn func(ctx context.Context, cutoff time.Time) (int64, error)
	calls    int
}

func (m *mockSessionDeleter) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.calls++
	return m.deleteFn(ctx, cutoff)
}

type mockRecorder struct {
	total int64
}

func (m *mockRecorder) RecordSessionsDeleted(count int64) {
	m.total += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_DefaultRetentionIsSevenDays(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionDeleter{}, &mockRecorder{}, newTestLogger(&buf))

	if job.Retention != 7*24*time.Hour {
		t.Errorf("Retention = %v, want 168h", job.Retention)
	}
}

func TestCleanupJob_Run_DeletesBeforeCutoff(t *testing.T) {
	var buf bytes.Buffer
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	var gotCutoff time.Time
	deleter := &mockSessionDeleter{
		deleteFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 3, nil
		},
	}
	recorder := &mockRecorder{}

	job := NewCleanupJob(deleter, recorder, newTestLogger(&buf)).
		WithClock(func() time.Time { return fixedNow })

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantCutoff := fixedNow.Add(-7 * 24 * time.Hour)
	if !gotCutoff.Equal(wantCutoff) {
		t.Errorf("cutoff = %v, want %v", gotCutoff, wantCutoff)
	}
	if recorder.total != 3 {
		t.Errorf("recorded deletions = %d, want 3", recorder.total)
	}
	if !strings.Contains(buf.String(), "session cleanup completed") {
		t.Errorf("log should contain completion entry, got: %s", buf.String())
	}
}

func TestCleanupJob_Run_NothingToDelete_Succeeds(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockSessionDeleter{
		deleteFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, nil
		},
	}

	job := NewCleanupJob(deleter, &mockRecorder{}, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestCleanupJob_Run_StoreError_ReturnsError(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockSessionDeleter{
		deleteFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, errors.New("connection refused")
		},
	}

	job := NewCleanupJob(deleter, &mockRecorder{}, newTestLogger(&buf))

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), "session cleanup failed") {
		t.Errorf("log should contain failure entry, got: %s", buf.String())
	}
}

func TestCleanupJob_RunLoop_StopsOnContextCancel(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockSessionDeleter{
		deleteFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, nil
		},
	}

	job := NewCleanupJob(deleter, &mockRecorder{}, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		job.RunLoop(ctx, time.Hour)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not stop after context cancel")
	}

	// 起動直後の1回は実行されている
	if deleter.calls < 1 {
		t.Errorf("deleter calls = %d, want at least 1", deleter.calls)
	}
}
