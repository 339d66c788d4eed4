// Package metrics records stamping and activity polling with Prometheus.
package metrics

import (
	"errors"
	"fmt"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stampkit"

type Collector struct {
	stamps   *prometheus.CounterVec
	polls    *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

var _ ports.Metrics = (*Collector)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		stamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stamps_total",
			Help:      "Stamps produced, by credential type and result.",
		}, []string{"credential", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_polls_total",
			Help:      "Activity status lookups, by returned status.",
		}, []string{"status"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_outcomes_total",
			Help:      "Activities settled by the poller, by outcome.",
		}, []string{"outcome"}),
	}

	for _, collector := range []prometheus.Collector{c.stamps, c.polls, c.outcomes} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return c, nil
}

func (c *Collector) ObserveStamp(credential domain.CredentialType, err error) {
	c.stamps.WithLabelValues(string(credential), stampResult(err)).Inc()
}

func (c *Collector) ObservePoll(status domain.ActivityStatus) {
	c.polls.WithLabelValues(string(status)).Inc()
}

func (c *Collector) ObserveActivityOutcome(outcome string) {
	c.outcomes.WithLabelValues(outcome).Inc()
}

func stampResult(err error) string {
	var expired *domain.SessionExpiredError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &expired):
		return "session_expired"
	case errors.Is(err, domain.ErrWalletSignRejected), errors.Is(err, domain.ErrPasskeyCeremonyFailed):
		return "rejected"
	case errors.Is(err, domain.ErrNoActiveCredential), errors.Is(err, domain.ErrNoProviderForChain):
		return "no_credential"
	default:
		return "error"
	}
}
