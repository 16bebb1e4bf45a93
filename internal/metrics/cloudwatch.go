// Package metrics publishes request telemetry to CloudWatch. The API chassis
// depends only on the core.MetricsCollector interface; this package provides
// the CloudWatch-backed implementation and a no-op for local development.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"alathletics/internal/config"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchCollector emits per-request metrics to CloudWatch:
//   - RequestCount: Dims {Method, Route, Status}
//   - RequestLatency: Dims {Method, Route}
//
// Publishing happens on a short background context so a slow CloudWatch call
// never delays the HTTP response path.
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchCollector creates a collector using the default AWS credential
// chain for the configured region.
func NewCloudWatchCollector(ctx context.Context, cfg config.MetricsConfig, logger *slog.Logger) (*CloudWatchCollector, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return NewCloudWatchCollectorWithClient(cloudwatch.NewFromConfig(awsCfg), cfg.Namespace, logger), nil
}

// NewCloudWatchCollectorWithClient creates a collector with an injected
// CloudWatch client.
func NewCloudWatchCollectorWithClient(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchCollector{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRequest publishes the count and latency for one handled request.
func (c *CloudWatchCollector) RecordRequest(method, route, status string, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	methodRoute := []cwtypes.Dimension{
		{Name: aws.String("Method"), Value: aws.String(method)},
		{Name: aws.String("Route"), Value: aws.String(route)},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("RequestCount"),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: append(methodRoute, cwtypes.Dimension{
					Name:  aws.String("Status"),
					Value: aws.String(status),
				}),
			},
			{
				MetricName: aws.String("RequestLatency"),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: methodRoute,
			},
		},
	}

	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		c.logger.Warn("failed to publish request metrics",
			"error", err,
			"method", method,
			"route", route,
		)
	}
}

// NoopCollector discards all metrics. Used in local and dev environments.
type NoopCollector struct{}

// RecordRequest does nothing.
func (NoopCollector) RecordRequest(_, _, _ string, _ time.Duration) {}
