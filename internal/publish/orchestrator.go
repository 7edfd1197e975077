package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/healing"
	"github.com/apppro/content-pipeline/internal/infra/storage"
	"github.com/apppro/content-pipeline/internal/metrics"
)

// channelTimeout bounds one adapter call so a hung provider cannot stall the
// whole fanout.
const channelTimeout = 30 * time.Second

// ChannelResult is the outcome of one channel dispatch.
type ChannelResult struct {
	ChannelID      string
	ChannelName    string
	Type           domain.ChannelType
	Success        bool
	Mock           bool
	PlatformID     string
	PlatformURL    string
	DistributionID string
	Error          string
}

// Aggregate summarizes one fanout across all active channels. Failures
// counts real failures only; mock outcomes (missing credential, placeholder
// adapters) are expected and non-alarming.
type Aggregate struct {
	ContentID string
	Total     int
	Successes int
	Failures  int
	Results   []ChannelResult
}

// ChannelNames lists the channels that delivered successfully.
func (a *Aggregate) ChannelNames() []string {
	var names []string
	for _, r := range a.Results {
		if r.Success {
			names = append(names, r.ChannelName)
		}
	}
	return names
}

// Orchestrator fans one approved content item out to every active channel.
// Channels are dispatched concurrently and isolated from each other: a
// failing or panicking adapter produces a failed Distribution record and
// never blocks the remaining channels. The orchestrator owns the content
// item's terminal published/failed transition.
type Orchestrator struct {
	channels   storage.ChannelRepository
	dists      storage.DistributionRepository
	content    storage.ContentRepository
	executor   *healing.Executor
	gate       *healing.Gate
	blog       *BlogPublisher
	newsletter *NewsletterPublisher
	sns        *SNSPublisher
	creds      map[string]string
	log        *slog.Logger
	now        func() time.Time
}

// NewOrchestrator wires the distribution orchestrator. creds maps credential
// references from the channel registry to resolved secrets; a channel whose
// reference has no entry runs in mock mode.
func NewOrchestrator(
	channels storage.ChannelRepository,
	dists storage.DistributionRepository,
	content storage.ContentRepository,
	executor *healing.Executor,
	gate *healing.Gate,
	blog *BlogPublisher,
	newsletter *NewsletterPublisher,
	creds map[string]string,
) *Orchestrator {
	return &Orchestrator{
		channels:   channels,
		dists:      dists,
		content:    content,
		executor:   executor,
		gate:       gate,
		blog:       blog,
		newsletter: newsletter,
		sns:        &SNSPublisher{},
		creds:      creds,
		log:        slog.Default().With("component", "orchestrator"),
		now:        time.Now,
	}
}

// PublishAll dispatches the item to every active channel and applies the
// terminal content transition: published on any success, failed otherwise.
func (o *Orchestrator) PublishAll(ctx context.Context, item *domain.ContentItem) (*Aggregate, error) {
	body, err := domain.DecodeContentBody(item.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content body: %w", err)
	}

	channels, err := o.channels.ListActive(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	o.log.Info("Dispatching to channels", "content_id", item.ID, "channels", len(channels))

	results := make([]ChannelResult, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch *domain.Channel) {
			defer wg.Done()
			results[i] = o.dispatch(ctx, ch, item, body)
		}(i, ch)
	}
	wg.Wait()

	agg := &Aggregate{ContentID: item.ID, Total: len(channels), Results: results}
	for _, r := range results {
		switch {
		case r.Success:
			agg.Successes++
		case !r.Mock:
			agg.Failures++
		}
	}

	status := domain.ContentFailed
	if agg.Successes > 0 {
		status = domain.ContentPublished
	}
	if err := o.content.SetStatus(ctx, item.ID, status); err != nil {
		return agg, fmt.Errorf("failed to set content status: %w", err)
	}

	o.log.Info("Fanout complete", "content_id", item.ID,
		"successes", agg.Successes, "failures", agg.Failures, "status", status)
	return agg, nil
}

// dispatch runs one channel adapter under its timeout with panic isolation.
func (o *Orchestrator) dispatch(ctx context.Context, ch *domain.Channel, item *domain.ContentItem, body *domain.ContentBody) (result ChannelResult) {
	result = ChannelResult{ChannelID: ch.ID, ChannelName: ch.Name, Type: ch.Type}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("channel adapter panic: %v", r)
			o.log.Error("Channel adapter panicked", "channel", ch.Name, "panic", r)
			metrics.ChannelDeliveries.WithLabelValues(string(ch.Type), "failed").Inc()
			o.recordFailure(ctx, ch, item, &result)
			o.writeDistribution(ctx, ch, item, &result)
		}
	}()

	chCtx, cancel := context.WithTimeout(ctx, channelTimeout)
	defer cancel()

	// A channel that names a credential nobody configured is an expected
	// mock outcome, not an operational error.
	if ch.CredentialsRef != "" && ch.Credential(o.creds) == "" {
		result.Mock = true
		result.Error = fmt.Sprintf("MOCK_MODE: %s not set", ch.CredentialsRef)
		o.writeDistribution(ctx, ch, item, &result)
		metrics.ChannelDeliveries.WithLabelValues(string(ch.Type), "mock").Inc()
		return result
	}

	switch ch.Type {
	case domain.ChannelBlog:
		result.PlatformID, result.PlatformURL, result.Error = callAdapter(func() (string, string, error) {
			return o.blog.Publish(chCtx, item, body)
		})
	case domain.ChannelNewsletter:
		result.PlatformID, _, result.Error = callAdapter(func() (string, string, error) {
			id, err := o.newsletter.Publish(chCtx, ch.Config, item.Title, body.Content, body.Excerpt, body.Category)
			return id, "", err
		})
	case domain.ChannelSNS:
		result.Mock = true
		result.Error = o.sns.Publish().Error()
	default:
		result.Error = fmt.Sprintf("unknown channel type: %s", ch.Type)
	}

	result.Success = result.Error == ""
	if result.Success {
		metrics.ChannelDeliveries.WithLabelValues(string(ch.Type), "success").Inc()
	} else if result.Mock {
		metrics.ChannelDeliveries.WithLabelValues(string(ch.Type), "mock").Inc()
	} else {
		metrics.ChannelDeliveries.WithLabelValues(string(ch.Type), "failed").Inc()
		o.recordFailure(ctx, ch, item, &result)
	}

	o.writeDistribution(ctx, ch, item, &result)
	return result
}

func callAdapter(fn func() (string, string, error)) (platformID, platformURL, errMsg string) {
	id, url, err := fn()
	if err != nil {
		return "", "", err.Error()
	}
	return id, url, ""
}

// recordFailure persists the channel failure as an ErrorRecord. Credential
// failures escalate immediately; no retry fixes a bad key.
func (o *Orchestrator) recordFailure(ctx context.Context, ch *domain.Channel, item *domain.ContentItem, result *ChannelResult) {
	failure := healing.Failure{
		Component: componentFor(ch.Type),
		Kind:      domain.ErrAPIError,
		Message:   result.Error,
		ContentID: item.ID,
		ChannelID: ch.ID,
	}

	if isAuthError(result.Error) {
		failure.Kind = domain.ErrAuthFail
		if _, err := o.gate.Escalate(ctx, o.executor, failure); err != nil {
			o.log.Error("Failed to escalate channel auth failure", "channel", ch.Name, "error", err)
		}
		return
	}

	if _, err := o.executor.Record(ctx, failure); err != nil {
		o.log.Error("Failed to record channel failure", "channel", ch.Name, "error", err)
	}
}

func (o *Orchestrator) writeDistribution(ctx context.Context, ch *domain.Channel, item *domain.ContentItem, result *ChannelResult) {
	now := o.now().UnixMilli()
	dist := &domain.Distribution{
		ID:        uuid.New().String(),
		ContentID: item.ID,
		ChannelID: ch.ID,
		Status:    domain.DistributionFailed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if result.Success {
		dist.Status = domain.DistributionPublished
		dist.PlatformID = result.PlatformID
		dist.PlatformURL = result.PlatformURL
		dist.PublishedAt = now
	} else {
		dist.ErrorMessage = result.Error
	}

	if err := o.dists.Add(ctx, dist); err != nil {
		o.log.Error("Failed to write distribution", "channel", ch.Name, "error", err)
		return
	}
	result.DistributionID = dist.ID
}

func componentFor(t domain.ChannelType) domain.Component {
	switch t {
	case domain.ChannelNewsletter:
		return domain.ComponentCampaignMailer
	case domain.ChannelSNS:
		return domain.ComponentSNSPublisher
	default:
		return domain.ComponentPublisher
	}
}

func isAuthError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "401") ||
		strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "forbidden")
}
