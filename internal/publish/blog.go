// Package publish implements the distribution orchestrator and its three
// channel adapters: document-store blog publishing, campaign-mail
// newsletters, and the social fanout placeholder.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/apppro/content-pipeline/internal/core/domain"
)

// DocumentStore is the external blog document table the blog adapter writes
// into.
type DocumentStore interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	Insert(ctx context.Context, id, title, slug, content, excerpt, metaDescription, category string, tags []string, publishedAt int64) error
}

// BlogPublisher writes approved content into the document store under a
// collision-safe slug.
type BlogPublisher struct {
	docs    DocumentStore
	siteURL string
	now     func() time.Time
}

// NewBlogPublisher creates the document-store adapter. siteURL is the public
// base the platform URL is derived from.
func NewBlogPublisher(docs DocumentStore, siteURL string) *BlogPublisher {
	return &BlogPublisher{docs: docs, siteURL: siteURL, now: time.Now}
}

// Publish inserts the item as a new document. A slug collision appends the
// current date and retries the write once; a second collision fails the
// attempt.
func (p *BlogPublisher) Publish(ctx context.Context, item *domain.ContentItem, body *domain.ContentBody) (platformID, platformURL string, err error) {
	slug := body.Slug
	if slug == "" {
		return "", "", fmt.Errorf("draft has no slug")
	}

	exists, err := p.docs.SlugExists(ctx, slug)
	if err != nil {
		return "", "", fmt.Errorf("failed to check slug: %w", err)
	}
	if exists {
		slug = fmt.Sprintf("%s-%s", slug, p.now().UTC().Format("2006-01-02"))
		exists, err = p.docs.SlugExists(ctx, slug)
		if err != nil {
			return "", "", fmt.Errorf("failed to check slug: %w", err)
		}
		if exists {
			return "", "", fmt.Errorf("slug %q already taken after date suffix", slug)
		}
	}

	docID := uuid.New().String()
	publishedAt := p.now().UnixMilli()
	if err := p.docs.Insert(ctx, docID, item.Title, slug,
		body.Content, body.Excerpt, body.MetaDescription, body.Category,
		body.Tags, publishedAt); err != nil {
		return "", "", fmt.Errorf("failed to insert document: %w", err)
	}

	return docID, fmt.Sprintf("%s/blog/posts/%s", p.siteURL, slug), nil
}
