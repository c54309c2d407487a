package observability

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// cloudWatchBatchSize is the PutMetricData datum limit per call
const cloudWatchBatchSize = 1000

// CloudWatchAPI is the subset of the CloudWatch client the flusher needs
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchFlusher periodically ships buffered web hit counts to CloudWatch
type CloudWatchFlusher struct {
	client    CloudWatchAPI
	metrics   *Metrics
	namespace string
	interval  time.Duration
	logger    *zap.Logger
}

// NewCloudWatchFlusher creates a flusher publishing under namespace
func NewCloudWatchFlusher(client CloudWatchAPI, metrics *Metrics, namespace string, interval time.Duration, logger *zap.Logger) *CloudWatchFlusher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CloudWatchFlusher{
		client:    client,
		metrics:   metrics,
		namespace: namespace,
		interval:  interval,
		logger:    logger,
	}
}

// Run flushes every interval until ctx is cancelled, then flushes once more
func (f *CloudWatchFlusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Flush(ctx)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			f.Flush(shutdownCtx)
			cancel()
			return
		}
	}
}

// Flush sends the hits buffered since the previous flush
func (f *CloudWatchFlusher) Flush(ctx context.Context) {
	hits := f.metrics.drainWebHits()
	if len(hits) == 0 {
		return
	}

	uris := make([]string, 0, len(hits))
	for uri := range hits {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	now := time.Now()
	data := make([]types.MetricDatum, 0, len(uris))
	for _, uri := range uris {
		data = append(data, types.MetricDatum{
			MetricName: aws.String("web.hits"),
			Dimensions: []types.Dimension{
				{Name: aws.String("uri"), Value: aws.String(uri)},
			},
			Value:     aws.Float64(hits[uri]),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(now),
		})
	}

	for start := 0; start < len(data); start += cloudWatchBatchSize {
		end := min(start+cloudWatchBatchSize, len(data))
		_, err := f.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(f.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			f.logger.Warn("Failed to send metrics to CloudWatch",
				zap.Error(err),
				zap.Int("datums", end-start),
			)
		}
	}
}
