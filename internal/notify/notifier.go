// Package notify defines the outbound notification contract. Delivery is
// fire-and-forget from the workflow's point of view: transitions enqueue
// a dispatch job in their own transaction and the jobs worker delivers
// after commit, so a failing notifier can never fail or roll back the
// transition that triggered it.
package notify

import (
	"context"
	"log/slog"
)

type Kind string

const (
	KindReviewRequested  Kind = "review_requested"
	KindReviewAssigned   Kind = "review_assigned"
	KindVerdictDelivered Kind = "verdict_delivered"
	KindReviewReopened   Kind = "review_reopened"
	KindNotePublished    Kind = "note_published"
	KindJournalPublished Kind = "journal_published"
)

type Message struct {
	UserID uint64
	Kind   Kind
	Data   map[string]any
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications as structured log lines. It stands in
// for the real email/push sender.
type LogNotifier struct {
	Log *slog.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "notification",
		slog.Uint64("user_id", msg.UserID),
		slog.String("kind", string(msg.Kind)),
		slog.Any("data", msg.Data),
	)
	return nil
}
