// Package cleanup は放置セッションの自動削除ジョブを提供する。
// セッションCookieの有効期間（7日）を超えて更新されていないセッション行を
// 定期バッチで削除する。Cookie側は期限切れで無効になるため、
// 残った行はストアを太らせるだけのゴミになる。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetention はセッション行の保持期間。Cookieの有効期間と揃える。
const DefaultRetention = 7 * 24 * time.Hour

// SessionDeleter はセッション削除に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionDeleter interface {
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeletionRecorder は削除件数のメトリクス記録を抽象化する。
type DeletionRecorder interface {
	RecordSessionsDeleted(count int64)
}

// CleanupJob は保持期間を超過したセッションの自動削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	sessions  SessionDeleter
	recorder  DeletionRecorder
	logger    *slog.Logger
	Retention time.Duration
	now       func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持期間は7日。
func NewCleanupJob(sessions SessionDeleter, recorder DeletionRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:  sessions,
		recorder:  recorder,
		logger:    logger,
		Retention: DefaultRetention,
		now:       time.Now,
	}
}

// WithClock はテスト用に現在時刻の供給元を差し替える。
func (j *CleanupJob) WithClock(now func() time.Time) *CleanupJob {
	j.now = now
	return j
}

// Run は保持期間を超過したセッションを削除する。
// updated_atが現在時刻からRetention前より古い行が対象。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().Add(-j.Retention)

	deletedCount, err := j.sessions.DeleteUpdatedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff),
		)
		return fmt.Errorf("failed to clean up sessions: %w", err)
	}

	j.recorder.RecordSessionsDeleted(deletedCount)

	duration := time.Since(start)
	j.logger.Info("session cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunLoop はintervalごとにRunを実行し続ける。
// コンテキストのキャンセルで停止する。起動直後にも1回実行する。
func (j *CleanupJob) RunLoop(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("initial cleanup run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup run failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			j.logger.Info("session cleanup loop stopped")
			return
		}
	}
}
