package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"caseflow/internal/notify"
)

// Worker drains the dispatch queue. Notification failures are retried
// with exponential backoff and eventually marked FAILED; they never
// surface to the operation that enqueued them.
type Worker struct {
	ID       string
	Repo     *Repo
	Notifier notify.Notifier
	Log      *slog.Logger
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(800 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.Repo.Claim(w.ID)
			if err != nil {
				w.logger().Error("worker claim failed", slog.Any("error", err))
				continue
			}
			if job == nil {
				continue
			}
			w.Handle(ctx, job)
		}
	}
}

func (w *Worker) Handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeNotifyDispatch:
		w.handleNotify(ctx, job)
	default:
		_ = w.Repo.MarkFailed(job.ID, "unknown job type")
	}
}

func (w *Worker) handleNotify(ctx context.Context, job *Job) {
	var p notifyPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		_ = w.Repo.MarkFailed(job.ID, "bad payload")
		return
	}

	msg := notify.Message{UserID: job.UserID, Kind: p.Kind, Data: p.Data}
	if err := w.Notifier.Notify(ctx, msg); err != nil {
		w.logger().Warn("notify failed",
			slog.Uint64("job_id", job.ID),
			slog.String("kind", string(p.Kind)),
			slog.Any("error", err))
		w.retry(job, err.Error())
		return
	}
	_ = w.Repo.MarkDone(job.ID)
}

func (w *Worker) retry(job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Repo.MarkFailed(job.ID, errMsg)
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := time.Now().Add(time.Duration(sec) * time.Second)

	_ = w.Repo.RetryLater(job.ID, attempts, next, errMsg)
}

func (w *Worker) logger() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}
