package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes custom metrics to a CloudWatch namespace.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetrics returns a Metrics recorder for namespace.
func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Count records a Count metric.
func (m *Metrics) Count(ctx context.Context, name string, value float64, dims map[string]string) error {
	return m.put(ctx, name, value, cwtypes.StandardUnitCount, dims)
}

// Value records a unit-less metric, e.g. revenue.
func (m *Metrics) Value(ctx context.Context, name string, value float64, dims map[string]string) error {
	return m.put(ctx, name, value, cwtypes.StandardUnitNone, dims)
}

func (m *Metrics) put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dims map[string]string) error {
	datum := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Value:      &value,
		Unit:       unit,
		Timestamp:  timePtr(m.nowFunc()),
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
			Name:  awsString(k),
			Value: awsString(v),
		})
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return fmt.Errorf("put metric data %s: %w", name, err)
	}
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
