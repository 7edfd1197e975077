package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
)

// Store is an in-process implementation of every repository. It backs the
// no-database mode and the test suites. All writes go through a single mutex,
// which gives the per-record serialization the log store contract requires.
type Store struct {
	runs          map[string]*domain.PipelineRun
	errors        map[string]*domain.ErrorRecord
	errorOrder    []string
	content       map[string]*domain.ContentItem
	channels      []*domain.Channel
	distributions map[string]*domain.Distribution
	distOrder     []string
	collected     map[string]*domain.CollectedItem
	notifications []*domain.Notification
	documents     map[string]string // slug -> document id
	mu            sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		runs:          make(map[string]*domain.PipelineRun),
		errors:        make(map[string]*domain.ErrorRecord),
		content:       make(map[string]*domain.ContentItem),
		distributions: make(map[string]*domain.Distribution),
		collected:     make(map[string]*domain.CollectedItem),
		documents:     make(map[string]string),
	}
}

// SeedChannels installs the channel registry for no-database mode.
func (s *Store) SeedChannels(channels []*domain.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, channels...)
}

// -----------------------------------------------------------------------------
// Run Repository
// -----------------------------------------------------------------------------

type RunRepo struct {
	store *Store
}

func NewRunRepo(store *Store) *RunRepo {
	return &RunRepo{store: store}
}

func (r *RunRepo) Start(ctx context.Context, run *domain.PipelineRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *run
	r.store.runs[run.ID] = &cp
	return nil
}

func (r *RunRepo) Get(ctx context.Context, id string) (*domain.PipelineRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	run, ok := r.store.runs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (r *RunRepo) Complete(ctx context.Context, id string, itemsProcessed int, metadata []byte) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	run, ok := r.store.runs[id]
	if !ok {
		return storage.ErrNotFound
	}
	if run.Terminal() {
		return storage.ErrTerminal
	}
	run.Status = domain.RunCompleted
	run.DurationMs = nowMs() - run.StartedAt
	run.ItemsProcessed = itemsProcessed
	run.Metadata = metadata
	return nil
}

func (r *RunRepo) Fail(ctx context.Context, id string, errorMessage, errorRecordID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	run, ok := r.store.runs[id]
	if !ok {
		return storage.ErrNotFound
	}
	if run.Terminal() {
		return storage.ErrTerminal
	}
	run.Status = domain.RunFailed
	run.DurationMs = nowMs() - run.StartedAt
	run.ErrorMessage = errorMessage
	run.ErrorRecordID = errorRecordID
	return nil
}

func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]*domain.PipelineRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	runs := make([]*domain.PipelineRun, 0, len(r.store.runs))
	for _, run := range r.store.runs {
		cp := *run
		runs = append(runs, &cp)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt > runs[j].StartedAt })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// -----------------------------------------------------------------------------
// Error Repository
// -----------------------------------------------------------------------------

type ErrorRepo struct {
	store *Store
}

func NewErrorRepo(store *Store) *ErrorRepo {
	return &ErrorRepo{store: store}
}

func (r *ErrorRepo) Add(ctx context.Context, rec *domain.ErrorRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *rec
	r.store.errors[rec.ID] = &cp
	r.store.errorOrder = append(r.store.errorOrder, rec.ID)
	return nil
}

func (r *ErrorRepo) Get(ctx context.Context, id string) (*domain.ErrorRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.errors[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *ErrorRepo) ListUnresolved(ctx context.Context, limit int) ([]*domain.ErrorRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.ErrorRecord
	for _, id := range r.store.errorOrder {
		rec := r.store.errors[id]
		if rec.Resolved() || rec.Escalated {
			continue
		}
		if rec.FixAttempted && rec.FixResult != domain.FixFailed {
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *ErrorRepo) RecordFix(ctx context.Context, id string, result domain.FixResult, action string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.errors[id]
	if !ok {
		return storage.ErrNotFound
	}
	if rec.Resolved() {
		return storage.ErrTerminal
	}
	rec.FixAttempted = true
	rec.FixResult = result
	rec.FixAction = action
	if result == domain.FixSuccess {
		rec.ResolvedAt = nowMs()
		rec.ResolutionKind = "auto_fixed"
	}
	return nil
}

func (r *ErrorRepo) MarkEscalated(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.errors[id]
	if !ok {
		return storage.ErrNotFound
	}
	if rec.Resolved() {
		return storage.ErrTerminal
	}
	rec.Escalated = true
	rec.FixAttempted = true
	rec.FixResult = domain.FixSkipped
	return nil
}

func (r *ErrorRepo) CountRecentFailures(ctx context.Context, component domain.Component, since int64) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, rec := range r.store.errors {
		if rec.Component == component &&
			rec.FixResult == domain.FixFailed &&
			!rec.Resolved() &&
			rec.OccurredAt >= since {
			count++
		}
	}
	return count, nil
}

func (r *ErrorRepo) CountUnresolved(ctx context.Context) (int, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	total, escalated := 0, 0
	for _, rec := range r.store.errors {
		if rec.Resolved() {
			continue
		}
		total++
		if rec.Escalated {
			escalated++
		}
	}
	return total, escalated, nil
}

// -----------------------------------------------------------------------------
// Content Repository
// -----------------------------------------------------------------------------

type ContentRepo struct {
	store *Store
}

func NewContentRepo(store *Store) *ContentRepo {
	return &ContentRepo{store: store}
}

func (r *ContentRepo) SaveDraft(ctx context.Context, item *domain.ContentItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *item
	r.store.content[item.ID] = &cp
	return nil
}

func (r *ContentRepo) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	item, ok := r.store.content[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *ContentRepo) NextApproved(ctx context.Context) (*domain.ContentItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var next *domain.ContentItem
	for _, item := range r.store.content {
		if item.Status != domain.ContentApproved {
			continue
		}
		if next == nil || item.ApprovedAt < next.ApprovedAt {
			next = item
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

func (r *ContentRepo) SetStatus(ctx context.Context, id string, status domain.ContentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.content[id]
	if !ok {
		return storage.ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = nowMs()
	if status == domain.ContentApproved {
		item.ApprovedAt = item.UpdatedAt
	}
	return nil
}

func (r *ContentRepo) CountByStatus(ctx context.Context, status domain.ContentStatus) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, item := range r.store.content {
		if item.Status == status {
			count++
		}
	}
	return count, nil
}

// -----------------------------------------------------------------------------
// Channel Repository
// -----------------------------------------------------------------------------

type ChannelRepo struct {
	store *Store
}

func NewChannelRepo(store *Store) *ChannelRepo {
	return &ChannelRepo{store: store}
}

func (r *ChannelRepo) ListActive(ctx context.Context, typeFilter domain.ChannelType) ([]*domain.Channel, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Channel
	for _, ch := range r.store.channels {
		if !ch.Active {
			continue
		}
		if typeFilter != "" && ch.Type != typeFilter {
			continue
		}
		cp := *ch
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (r *ChannelRepo) Get(ctx context.Context, id string) (*domain.Channel, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, ch := range r.store.channels {
		if ch.ID == id {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// -----------------------------------------------------------------------------
// Distribution Repository
// -----------------------------------------------------------------------------

type DistributionRepo struct {
	store *Store
}

func NewDistributionRepo(store *Store) *DistributionRepo {
	return &DistributionRepo{store: store}
}

func (r *DistributionRepo) Add(ctx context.Context, dist *domain.Distribution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *dist
	r.store.distributions[dist.ID] = &cp
	r.store.distOrder = append(r.store.distOrder, dist.ID)
	return nil
}

func (r *DistributionRepo) Update(ctx context.Context, dist *domain.Distribution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.distributions[dist.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *dist
	cp.UpdatedAt = nowMs()
	r.store.distributions[dist.ID] = &cp
	return nil
}

func (r *DistributionRepo) ListByContent(ctx context.Context, contentID string) ([]*domain.Distribution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Distribution
	for _, id := range r.store.distOrder {
		dist := r.store.distributions[id]
		if dist.ContentID == contentID {
			cp := *dist
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Collected Item Repository
// -----------------------------------------------------------------------------

type CollectedItemRepo struct {
	store *Store
}

func NewCollectedItemRepo(store *Store) *CollectedItemRepo {
	return &CollectedItemRepo{store: store}
}

func (r *CollectedItemRepo) SaveNew(ctx context.Context, items []*domain.CollectedItem) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	seen := make(map[string]bool, len(r.store.collected))
	for _, it := range r.store.collected {
		seen[it.URL] = true
	}
	saved := 0
	for _, it := range items {
		if seen[it.URL] {
			continue
		}
		cp := *it
		r.store.collected[it.ID] = &cp
		seen[it.URL] = true
		saved++
	}
	return saved, nil
}

func (r *CollectedItemRepo) ListUnused(ctx context.Context, limit int) ([]*domain.CollectedItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.CollectedItem
	for _, it := range r.store.collected {
		if !it.Used {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectedAt > out[j].CollectedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *CollectedItemRepo) MarkUsed(ctx context.Context, ids []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range ids {
		if it, ok := r.store.collected[id]; ok {
			it.Used = true
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Notification Repository
// -----------------------------------------------------------------------------

type NotificationRepo struct {
	store *Store
}

func NewNotificationRepo(store *Store) *NotificationRepo {
	return &NotificationRepo{store: store}
}

func (r *NotificationRepo) Add(ctx context.Context, n *domain.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *n
	r.store.notifications = append(r.store.notifications, &cp)
	return nil
}

// Notifications returns a snapshot of stored notifications, for tests.
func (s *Store) Notifications() []*domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		cp := *n
		out = append(out, &cp)
	}
	return out
}

// Errors returns a snapshot of stored error records in insertion order, for
// tests.
func (s *Store) Errors() []*domain.ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ErrorRecord, 0, len(s.errorOrder))
	for _, id := range s.errorOrder {
		cp := *s.errors[id]
		out = append(out, &cp)
	}
	return out
}

// -----------------------------------------------------------------------------
// Document Repository
// -----------------------------------------------------------------------------

// DocumentRepo backs the blog channel's document store in no-database mode.
type DocumentRepo struct {
	store *Store
}

func NewDocumentRepo(store *Store) *DocumentRepo {
	return &DocumentRepo{store: store}
}

func (r *DocumentRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, ok := r.store.documents[slug]
	return ok, nil
}

func (r *DocumentRepo) Insert(ctx context.Context, id, title, slug, content, excerpt, metaDescription, category string, tags []string, publishedAt int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.documents[slug]; ok {
		return fmt.Errorf("duplicate slug: %s", slug)
	}
	r.store.documents[slug] = id
	return nil
}
