// Package noop provides a no-operation metrics client for tests and for
// hosts that disable metrics collection.
package noop

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

type MetricsClient struct{}

func NewMetricsClient() MetricsClient {
	return MetricsClient{}
}

func (c MetricsClient) Inc(_ context.Context, _ string, _ int64, _ ...attribute.KeyValue) {}
