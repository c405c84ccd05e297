package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher sends a registry's metrics to a Prometheus Pushgateway.
// A migration is a batch job, so nothing stays up to be scraped.
type Pusher struct {
	gatherer prometheus.Gatherer
	url      string
	job      string
}

// NewPusher creates a Pusher for gatherer.
func NewPusher(url, job string, gatherer prometheus.Gatherer) *Pusher {
	if job == "" {
		job = defaultPushJob
	}

	return &Pusher{url: url, job: job, gatherer: gatherer}
}

// Push replaces the job's metric group on the gateway.
func (p *Pusher) Push(ctx context.Context) error {
	err := push.New(p.url, p.job).Gatherer(p.gatherer).PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", p.url, err)
	}

	return nil
}
