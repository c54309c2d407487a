// Package sqs carries collaboration notifications over an SQS queue.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"todo-backend/application/ports"
	"todo-backend/domain/collaboration"
)

const (
	// QueueName and DeadLetterQueueName are the names provisioned for the sharing flow
	QueueName           = "todo-sharing-queue"
	DeadLetterQueueName = "todo-sharing-dead-letter-queue"
	// MaxReceiveCount is the redrive threshold of the sharing queue
	MaxReceiveCount = 3
)

// API is the subset of the SQS client used here
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Publisher implements ports.NotificationPublisher on an SQS queue
type Publisher struct {
	client   API
	queueURL string
	logger   *zap.Logger
}

// NewPublisher creates a publisher for queueURL
func NewPublisher(client API, queueURL string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, logger: logger}
}

// Publish sends n as one JSON message
func (p *Publisher) Publish(ctx context.Context, n collaboration.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	p.logger.Debug("Notification queued",
		zap.String("messageID", aws.ToString(out.MessageId)),
		zap.Int64("todoID", n.TodoID),
	)
	return nil
}

// Consumer long-polls the queue and hands each message to a handler.
// Messages are deleted only after the handler succeeds; everything else is
// left for redelivery and, eventually, the dead-letter queue.
type Consumer struct {
	client      API
	queueURL    string
	handler     ports.NotificationHandler
	concurrency int
	waitTime    int32
	logger      *zap.Logger
}

// NewConsumer creates a consumer handling up to concurrency messages at once
func NewConsumer(client API, queueURL string, handler ports.NotificationHandler, concurrency int, logger *zap.Logger) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{
		client:      client,
		queueURL:    queueURL,
		handler:     handler,
		concurrency: concurrency,
		waitTime:    20,
		logger:      logger,
	}
}

// Run polls until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Starting sharing queue consumer",
		zap.String("queueURL", c.queueURL),
		zap.Int("concurrency", c.concurrency),
	)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    aws.String(c.queueURL),
			MaxNumberOfMessages:         10,
			WaitTimeSeconds:             c.waitTime,
			MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to receive messages", zap.Error(err), zap.Duration("retryIn", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		c.process(ctx, out.Messages)
	}
}

func (c *Consumer) process(ctx context.Context, messages []types.Message) {
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, m := range messages {
		m := m
		g.Go(func() error {
			c.handleMessage(ctx, m)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Consumer) handleMessage(ctx context.Context, m types.Message) {
	messageID := aws.ToString(m.MessageId)
	receives, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])

	if err := handleBody(ctx, c.handler, aws.ToString(m.Body)); err != nil {
		c.logger.Warn("Notification not handled; leaving it on the queue",
			zap.Error(err),
			zap.String("messageID", messageID),
			zap.Int("receiveCount", receives),
			zap.Bool("nextReceiveDeadLetters", receives >= MaxReceiveCount),
		)
		return
	}

	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		c.logger.Error("Failed to delete handled message", zap.Error(err), zap.String("messageID", messageID))
	}
}

func handleBody(ctx context.Context, handler ports.NotificationHandler, body string) error {
	var n collaboration.Notification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return fmt.Errorf("malformed notification: %w", err)
	}
	return handler.Handle(ctx, n)
}

// BatchHook runs after a Lambda batch has been handled
type BatchHook func(ctx context.Context) error

// LambdaOption configures a LambdaHandler
type LambdaOption func(*LambdaHandler)

// WithTracer wraps every record in a trace span
func WithTracer(tracer ports.FunctionTracer) LambdaOption {
	return func(h *LambdaHandler) { h.tracer = tracer }
}

// WithAfterBatch registers hooks that run, in order, before the invocation
// returns. Work started by the handlers that would otherwise be frozen with
// the execution environment belongs here.
func WithAfterBatch(hooks ...BatchHook) LambdaOption {
	return func(h *LambdaHandler) { h.afterBatch = append(h.afterBatch, hooks...) }
}

// hookMargin is kept free before the invocation deadline
const hookMargin = 500 * time.Millisecond

// LambdaHandler adapts a NotificationHandler to an SQS-triggered Lambda.
// Failed records are reported individually so only they are redelivered.
type LambdaHandler struct {
	handler    ports.NotificationHandler
	tracer     ports.FunctionTracer
	afterBatch []BatchHook
	logger     *zap.Logger
}

// NewLambdaHandler creates a Lambda adapter for handler
func NewLambdaHandler(handler ports.NotificationHandler, logger *zap.Logger, opts ...LambdaOption) *LambdaHandler {
	h := &LambdaHandler{handler: handler, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one SQS batch
func (h *LambdaHandler) Handle(ctx context.Context, event lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	var resp lambdaevents.SQSEventResponse
	for _, record := range event.Records {
		if err := h.handleRecord(ctx, record); err != nil {
			h.logger.Warn("Notification not handled",
				zap.Error(err),
				zap.String("messageID", record.MessageId),
				zap.String("receiveCount", record.Attributes["ApproximateReceiveCount"]),
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}
	h.runAfterBatch(ctx)
	return resp, nil
}

func (h *LambdaHandler) handleRecord(ctx context.Context, record lambdaevents.SQSMessage) error {
	if h.tracer == nil {
		return handleBody(ctx, h.handler, record.Body)
	}
	return h.tracer.TraceFunction(ctx, "sharing.notification", func(ctx context.Context) error {
		h.tracer.AddAnnotation(ctx, "message_id", record.MessageId)
		return handleBody(ctx, h.handler, record.Body)
	})
}

// runAfterBatch runs the hooks bounded by the invocation deadline. Failures
// are logged; the records are already handled.
func (h *LambdaHandler) runAfterBatch(ctx context.Context) {
	if len(h.afterBatch) == 0 {
		return
	}
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-hookMargin))
		defer cancel()
	}
	for _, hook := range h.afterBatch {
		if err := hook(ctx); err != nil {
			h.logger.Warn("After-batch hook did not finish", zap.Error(err))
		}
	}
}
