// Package notify inserts pending operator notifications. An external sender
// polls the table and handles actual delivery; failures here are logged and
// swallowed so a broken notification path never fails a pipeline stage.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
)

// Notifier writes best-effort operator alerts.
type Notifier struct {
	repo storage.NotificationRepository
	log  *slog.Logger
	now  func() time.Time
}

// New creates a notifier over the notification store.
func New(repo storage.NotificationRepository) *Notifier {
	return &Notifier{
		repo: repo,
		log:  slog.Default().With("component", "notify"),
		now:  time.Now,
	}
}

func (n *Notifier) insert(ctx context.Context, notif *domain.Notification) {
	notif.ID = uuid.New().String()
	notif.Status = "pending"
	notif.CreatedAt = n.now().UnixMilli()
	if err := n.repo.Add(ctx, notif); err != nil {
		n.log.Warn("Failed to insert notification", "type", notif.Type, "error", err)
	}
}

// DraftCreated alerts that a new draft awaits review.
func (n *Notifier) DraftCreated(ctx context.Context, contentID, title string, qaScore int) {
	n.insert(ctx, &domain.Notification{
		Type:      domain.NotifyDraftCreated,
		Title:     fmt.Sprintf("Draft created: %s", title),
		Body:      fmt.Sprintf("New draft awaiting review\nTitle: %s\nQA: %d/8", title, qaScore),
		ContentID: contentID,
	})
}

// QAFailed alerts that generation exhausted its quality retries.
func (n *Notifier) QAFailed(ctx context.Context, topic string, score, attempts int) {
	n.insert(ctx, &domain.Notification{
		Type:  domain.NotifyQAFailed,
		Title: fmt.Sprintf("Quality gate missed: %s", topic),
		Body:  fmt.Sprintf("Draft below quality threshold\nTopic: %s\nScore: %d/8\nAttempts: %d", topic, score, attempts),
	})
}

// Published alerts that an item went out, listing the delivered channels.
func (n *Notifier) Published(ctx context.Context, contentID, title string, channels []string) {
	n.insert(ctx, &domain.Notification{
		Type:      domain.NotifyPublished,
		Title:     fmt.Sprintf("Published: %s", title),
		Body:      fmt.Sprintf("Content published\nTitle: %s\nChannels: %s", title, strings.Join(channels, ", ")),
		ContentID: contentID,
	})
}

// Escalated alerts that an error was handed to a human.
func (n *Notifier) Escalated(ctx context.Context, errorRecordID string, component domain.Component, message string) {
	n.insert(ctx, &domain.Notification{
		Type:          domain.NotifyErrorEscalation,
		Title:         fmt.Sprintf("Escalation: %s", component),
		Body:          fmt.Sprintf("Error escalated for manual intervention\nComponent: %s\nMessage: %s", component, message),
		ErrorRecordID: errorRecordID,
	})
}
