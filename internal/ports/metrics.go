package ports

import "github.com/bnema/stampkit/internal/domain"

type Metrics interface {
	ObserveStamp(credential domain.CredentialType, err error)
	ObservePoll(status domain.ActivityStatus)
	ObserveActivityOutcome(outcome string)
}

type NopMetrics struct{}

func (NopMetrics) ObserveStamp(domain.CredentialType, error) {}

func (NopMetrics) ObservePoll(domain.ActivityStatus) {}

func (NopMetrics) ObserveActivityOutcome(string) {}
