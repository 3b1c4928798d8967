// Package metrics is a thin counter facade over the OpenTelemetry
// metric API. With no SDK installed the global provider is a no-op, so
// instrumented code costs nothing until a host application wires one.
package metrics

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type (
	Client interface {
		Inc(ctx context.Context, name string, value int64, attributes ...attribute.KeyValue)
	}

	// Descriptor carries the metadata used when registering instruments.
	Descriptor struct {
		Description string
		Unit        string
	}

	// OTelClient registers counters lazily on first use, keyed by name.
	OTelClient struct {
		meter    metric.Meter
		mu       sync.Mutex
		counters map[string]metric.Int64Counter
	}
)

func NewOTelClient(scope string) *OTelClient {
	return &OTelClient{
		meter:    otel.GetMeterProvider().Meter(scope),
		counters: make(map[string]metric.Int64Counter),
	}
}

func (c *OTelClient) Inc(ctx context.Context, name string, value int64, attributes ...attribute.KeyValue) {
	counter, err := c.counter(name)
	if err != nil {
		return
	}

	counter.Add(ctx, value, metric.WithAttributes(attributes...))
}

func (c *OTelClient) counter(name string) (metric.Int64Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.counters[name]; ok {
		return counter, nil
	}

	counter, err := RegisterInt64Counter(c.meter, Descriptor{Unit: "1"}, name)
	if err != nil {
		return nil, err
	}

	c.counters[name] = counter

	return counter, nil
}

// RegisterInt64Counter creates an Int64 counter with the descriptor's
// metadata.
func RegisterInt64Counter(m metric.Meter, descriptor Descriptor, name string) (metric.Int64Counter, error) {
	counter, err := m.Int64Counter(
		name,
		metric.WithDescription(descriptor.Description),
		metric.WithUnit(descriptor.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", name, err)
	}

	return counter, nil
}
