package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/apppro/content-pipeline/internal/core/domain"
)

// InferKind maps a raw stage error onto the failure taxonomy. Stages see
// collaborator errors as opaque; classification keys off the transport
// signals that survive into the message.
func InferKind(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrAPIError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "auth"):
		return domain.ErrAuthFail
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"):
		return domain.ErrRateLimit
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return domain.ErrTimeout
	default:
		return domain.ErrAPIError
	}
}
