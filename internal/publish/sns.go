package publish

import "errors"

// ErrSNSNotImplemented is the controlled failure the social-fanout adapter
// reports. SNS channels are normally inactive; if one is active anyway the
// orchestrator records this as a mock outcome, never a crash.
var ErrSNSNotImplemented = errors.New("MOCK_MODE: social fanout not implemented")

// SNSPublisher is the social-fanout placeholder adapter.
type SNSPublisher struct{}

// Publish always reports the controlled not-implemented failure.
func (p *SNSPublisher) Publish() error {
	return ErrSNSNotImplemented
}
