// Package healing implements error classification, retry execution,
// escalation, and the self-healing cycle that runs ahead of each pipeline
// pass.
package healing

import (
	"fmt"
	"time"

	"github.com/apppro/content-pipeline/internal/core/domain"
)

// Level grades how a failure should be remediated, from immediate retry (L1)
// to mandatory human escalation (L5). L3 and L4 are reserved strategies that
// are not actionable in this version; the cycle skips them deliberately.
type Level string

const (
	L1 Level = "L1" // immediate retry
	L2 Level = "L2" // exponential backoff retry
	L3 Level = "L3" // alternate strategy (not actionable this version)
	L4 Level = "L4" // quality degradation (not actionable this version)
	L5 Level = "L5" // immediate escalation
)

// Actionable reports whether automation can act on this level.
func (l Level) Actionable() bool {
	return l == L1 || l == L2
}

// Classification is the healing policy for one (component, kind) pair.
type Classification struct {
	Level      Level
	MaxRetries int
	BaseDelay  time.Duration
	Action     string
}

type policyKey struct {
	component domain.Component
	kind      domain.ErrorKind
}

// Classifier maps failures to healing policy. It is built once at process
// start and is safe for concurrent use; Classify has no side effects.
type Classifier struct {
	table map[policyKey]Classification
}

// NewClassifier builds a classifier over the default policy table.
func NewClassifier() *Classifier {
	return &Classifier{table: defaultPolicyTable()}
}

// Classify resolves the healing policy for a failure. auth_fail always grades
// L5 regardless of component; pairs missing from the table fall back to a
// conservative single backoff retry so unknown failure modes stay visible to
// operators without stalling the pipeline.
func (c *Classifier) Classify(component domain.Component, kind domain.ErrorKind) Classification {
	if kind == domain.ErrAuthFail {
		return Classification{
			Level:  L5,
			Action: fmt.Sprintf("escalate immediately: %s authentication failure, credential rotation required", component),
		}
	}

	if cls, ok := c.table[policyKey{component, kind}]; ok {
		return cls
	}

	return Classification{
		Level:      L2,
		MaxRetries: 1,
		BaseDelay:  5 * time.Second,
		Action:     fmt.Sprintf("unknown failure mode %s:%s, default retry", component, kind),
	}
}

func defaultPolicyTable() map[policyKey]Classification {
	return map[policyKey]Classification{
		// rss_collector
		{domain.ComponentRSSCollector, domain.ErrTimeout}: {
			Level: L1, MaxRetries: 1, BaseDelay: 5 * time.Second,
			Action: "retry with extended timeout",
		},
		{domain.ComponentRSSCollector, domain.ErrAPIError}: {
			Level: L1, MaxRetries: 1, BaseDelay: 5 * time.Second,
			Action: "retry after 5s",
		},
		{domain.ComponentRSSCollector, domain.ErrValidationFail}: {
			Level: L1, MaxRetries: 0, BaseDelay: 0,
			Action: "skip offending feed",
		},

		// ai_generator
		{domain.ComponentAIGenerator, domain.ErrTimeout}: {
			Level: L2, MaxRetries: 2, BaseDelay: 30 * time.Second,
			Action: "retry after 30s wait",
		},
		{domain.ComponentAIGenerator, domain.ErrAPIError}: {
			Level: L2, MaxRetries: 2, BaseDelay: 10 * time.Second,
			Action: "exponential backoff retry",
		},
		{domain.ComponentAIGenerator, domain.ErrRateLimit}: {
			Level: L2, MaxRetries: 3, BaseDelay: 30 * time.Second,
			Action: "back off until quota window resets",
		},

		// qa_checker
		{domain.ComponentQAChecker, domain.ErrQualityFail}: {
			Level: L2, MaxRetries: 2, BaseDelay: 0,
			Action: "regenerate with adjusted parameters",
		},

		// publisher
		{domain.ComponentPublisher, domain.ErrTimeout}: {
			Level: L1, MaxRetries: 1, BaseDelay: 5 * time.Second,
			Action: "retry after 5s",
		},
		{domain.ComponentPublisher, domain.ErrAPIError}: {
			Level: L1, MaxRetries: 1, BaseDelay: 5 * time.Second,
			Action: "retry after 5s",
		},
		{domain.ComponentPublisher, domain.ErrValidationFail}: {
			Level: L1, MaxRetries: 1, BaseDelay: 0,
			Action: "regenerate identifier and retry",
		},

		// campaign_mailer
		{domain.ComponentCampaignMailer, domain.ErrRateLimit}: {
			Level: L2, MaxRetries: 3, BaseDelay: 60 * time.Second,
			Action: "wait 60s, reschedule if still limited",
		},
		{domain.ComponentCampaignMailer, domain.ErrAPIError}: {
			Level: L2, MaxRetries: 2, BaseDelay: 5 * time.Second,
			Action: "retry, then validate request parameters",
		},
		{domain.ComponentCampaignMailer, domain.ErrValidationFail}: {
			Level: L2, MaxRetries: 1, BaseDelay: 0,
			Action: "validate request parameters and retry",
		},

		// sns_publisher
		{domain.ComponentSNSPublisher, domain.ErrAPIError}: {
			Level: L1, MaxRetries: 1, BaseDelay: 30 * time.Second,
			Action: "retry after 30s",
		},
		{domain.ComponentSNSPublisher, domain.ErrTimeout}: {
			Level: L1, MaxRetries: 1, BaseDelay: 5 * time.Second,
			Action: "retry, then skip platform",
		},

		// scheduler
		{domain.ComponentScheduler, domain.ErrAPIError}: {
			Level: L2, MaxRetries: 1, BaseDelay: 0,
			Action: "retry on next scheduled trigger",
		},
	}
}
