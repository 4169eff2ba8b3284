// Package datadog sends pipeline metrics to a DogStatsD agent. Counters map
// to statsd counts and step durations to histograms; metric labels travel as
// sorted "key:value" tags.
package datadog

import (
	"fmt"
	"sort"

	"github.com/DataDog/datadog-go/v5/statsd"

	"insurance-dq/internal/metrics"
)

// Config selects the agent and what every metric carries.
type Config struct {
	// Addr is host:port for UDP or unix:///path for a socket.
	Addr string
	// Namespace prefixes metric names, e.g. "dq.".
	Namespace string
	// GlobalTags are added to each metric. The pipeline passes job:<name>.
	GlobalTags []string
}

// Backend implements metrics.Backend. The zero value drops everything.
type Backend struct {
	client statsd.ClientInterface
}

// NewBackend dials nothing; statsd writes are fire-and-forget, so only a
// missing address or a malformed one fails here.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: client for %s: %w", cfg.Addr, err)
	}
	return &Backend{client: c}, nil
}

// IncCounter records row, finding and batch counts. Deltas are whole
// numbers in this pipeline; a fraction is truncated.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(name, int64(delta), tags(labels), 1)
}

// ObserveHistogram records a step duration in seconds.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Histogram(name, value, tags(labels), 1)
}

// Flush closes the client so buffered packets go out before exit.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func tags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
