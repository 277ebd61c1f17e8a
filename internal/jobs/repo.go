package jobs

import (
	"encoding/json"
	"time"

	"caseflow/internal/notify"

	"gorm.io/gorm"
)

type notifyPayload struct {
	Kind notify.Kind    `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// EnqueueNotify inserts a notification dispatch job on the caller's
// transaction, so the job commits or rolls back together with the
// transition that produced it. The worker only ever sees committed jobs,
// which is what makes dispatch strictly post-commit.
func EnqueueNotify(tx *gorm.DB, userID uint64, kind notify.Kind, data map[string]any) error {
	payload, err := json.Marshal(notifyPayload{Kind: kind, Data: data})
	if err != nil {
		return err
	}
	j := Job{
		UserID:    userID,
		Type:      TypeNotifyDispatch,
		Payload:   payload,
		RunAt:     time.Now(),
		Status:    "PENDING",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return tx.Create(&j).Error
}

type Repo struct {
	DB *gorm.DB
}

// Claim one due job atomically using SKIP LOCKED. Postgres only.
func (r *Repo) Claim(workerID string) (*Job, error) {
	var job Job
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING jobs
		tx.Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < now() - interval '5 minutes'
`)

		q := tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= now()
  order by run_at asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, workerID)

		return q.Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(id uint64) error {
	return r.DB.Exec(`update jobs set status='DONE', updated_at=? where id=?`, time.Now(), id).Error
}

func (r *Repo) MarkFailed(id uint64, errMsg string) error {
	return r.DB.Exec(`update jobs set status='FAILED', last_error=?, updated_at=? where id=?`, errMsg, time.Now(), id).Error
}

func (r *Repo) RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.Exec(`
update jobs
set status='PENDING',
    attempts=?,
    run_at=?,
    locked_by=null,
    locked_at=null,
    last_error=?,
    updated_at=?
where id=?`, attempts, runAt, errMsg, time.Now(), id).Error
}
