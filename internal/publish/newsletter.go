package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

// CampaignSender is the external mail-campaign capability: create a campaign
// for a list and send it immediately, returning the platform campaign id.
type CampaignSender interface {
	SendCampaign(ctx context.Context, listID int, subject, htmlContent string) (string, error)
}

// NewsletterPublisher builds the HTML envelope for an item and requests an
// immediate campaign send.
type NewsletterPublisher struct {
	sender  CampaignSender
	listID  int
	siteURL string
}

// NewNewsletterPublisher creates the campaign-mail adapter. listID is the
// default subscriber list; a channel config may override it per channel.
func NewNewsletterPublisher(sender CampaignSender, listID int, siteURL string) *NewsletterPublisher {
	return &NewsletterPublisher{sender: sender, listID: listID, siteURL: siteURL}
}

// channelConfig is the free-form per-channel JSON the registry carries.
type channelConfig struct {
	ListID int `json:"list_id"`
}

// Publish sends the item as a campaign to the channel's list.
func (p *NewsletterPublisher) Publish(ctx context.Context, config []byte, title, content, excerpt, category string) (platformID string, err error) {
	listID := p.listID
	if len(config) > 0 {
		var cfg channelConfig
		if json.Unmarshal(config, &cfg) == nil && cfg.ListID > 0 {
			listID = cfg.ListID
		}
	}
	if listID <= 0 {
		return "", fmt.Errorf("newsletter list id not configured")
	}

	envelope := NewsletterHTML(title, content, excerpt, category, p.siteURL+"/blog")
	return p.sender.SendCampaign(ctx, listID, title, envelope)
}

// NewsletterHTML wraps markdown-ish content in the fixed campaign envelope:
// preheader from the excerpt, category badge, body, and a call-to-action
// link back to the blog.
func NewsletterHTML(title, content, excerpt, category, blogURL string) string {
	body := content
	if !strings.Contains(body, "<") {
		body = strings.ReplaceAll(html.EscapeString(body), "\n", "<br/>")
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"UTF-8\"><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head>\n<body>\n")
	if excerpt != "" {
		fmt.Fprintf(&b, "<div style=\"display:none;max-height:0;overflow:hidden;\">%s</div>\n",
			html.EscapeString(excerpt))
	}
	if category != "" {
		fmt.Fprintf(&b, "<span class=\"badge\">%s</span>\n", html.EscapeString(category))
	}
	fmt.Fprintf(&b, "<h1>%s</h1>\n<div>%s</div>\n", html.EscapeString(title), body)
	if blogURL != "" {
		fmt.Fprintf(&b, "<p><a href=\"%s\">Read the full post</a></p>\n", blogURL)
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// -----------------------------------------------------------------------------
// HTTP campaign client
// -----------------------------------------------------------------------------

// MailConfig configures the campaign-mail API client.
type MailConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	SenderName  string `yaml:"sender_name"`
	SenderEmail string `yaml:"sender_email"`
	ListID      int    `yaml:"list_id"`
}

// MailClient talks to the campaign-mail provider's HTTP API: create a
// campaign, then trigger immediate send.
type MailClient struct {
	cfg  MailConfig
	http *http.Client
	now  func() time.Time
}

// NewMailClient creates a campaign-mail API client.
func NewMailClient(cfg MailConfig) *MailClient {
	return &MailClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		now:  time.Now,
	}
}

type createCampaignRequest struct {
	Name        string       `json:"name"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent"`
	Sender      sender       `json:"sender"`
	Recipients  recipientSet `json:"recipients"`
}

type sender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type recipientSet struct {
	ListIDs []int `json:"listIds"`
}

type createCampaignResponse struct {
	ID int64 `json:"id"`
}

// SendCampaign creates the campaign and sends it immediately. Unauthorized
// responses surface the status code so the orchestrator can escalate.
func (c *MailClient) SendCampaign(ctx context.Context, listID int, subject, htmlContent string) (string, error) {
	name := fmt.Sprintf("%s (%s)", subject, c.now().UTC().Format("2006-01-02"))
	created, err := c.post(ctx, "/emailCampaigns", createCampaignRequest{
		Name:        name,
		Subject:     subject,
		HTMLContent: htmlContent,
		Sender:      sender{Name: c.cfg.SenderName, Email: c.cfg.SenderEmail},
		Recipients:  recipientSet{ListIDs: []int{listID}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create campaign: %w", err)
	}

	var resp createCampaignResponse
	if err := json.Unmarshal(created, &resp); err != nil || resp.ID == 0 {
		return "", fmt.Errorf("campaign create returned no id")
	}

	path := fmt.Sprintf("/emailCampaigns/%d/sendNow", resp.ID)
	if _, err := c.post(ctx, path, struct{}{}); err != nil {
		return "", fmt.Errorf("failed to send campaign %d: %w", resp.ID, err)
	}
	return fmt.Sprintf("%d", resp.ID), nil
}

func (c *MailClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	return data, nil
}
