package domain

// ChannelType selects which publisher adapter handles a channel.
type ChannelType string

const (
	ChannelBlog       ChannelType = "blog"
	ChannelNewsletter ChannelType = "newsletter"
	ChannelSNS        ChannelType = "sns"
)

// Channel is one configured distribution target. Channels are owned by
// configuration management; the pipeline only reads them.
type Channel struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Type           ChannelType `json:"type"`
	Platform       string      `json:"platform"`
	Config         []byte      `json:"config,omitempty"` // free-form JSON
	CredentialsRef string      `json:"credentials_ref,omitempty"`
	Active         bool        `json:"is_active"`
	CreatedAt      int64       `json:"created_at"`
}

// Credential resolves the channel's backing secret from the supplied
// credential set. An empty result means the channel runs in mock mode.
func (c *Channel) Credential(creds map[string]string) string {
	if c.CredentialsRef == "" {
		return ""
	}
	return creds[c.CredentialsRef]
}
