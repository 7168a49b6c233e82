// Package ingest consumes reading batches from the managed queue and feeds
// them to the append engine.
package ingest

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/observability"
	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/pkg/errors"
)

// Config holds configuration for the SQS consumer
type Config struct {
	Region          string        `json:"region"`
	QueueURL        string        `json:"queue_url"`
	MaxMessages     int64         `json:"max_messages"`
	WaitTime        time.Duration `json:"wait_time"`
	VisibilityGrace time.Duration `json:"visibility_grace"`
}

// receiveBackoff spaces out retries after a failed receive so a broken
// queue connection does not spin the loop.
const receiveBackoff = 5 * time.Second

// Consumer pulls reading batches from SQS and appends them to the current
// day's partition.
type Consumer struct {
	config   *Config
	client   sqsiface.SQSAPI
	appender *partition.Appender
	logger   *logrus.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewConsumer creates an SQS consumer feeding appender
func NewConsumer(config *Config, appender *partition.Appender, logger *logrus.Logger) (*Consumer, error) {
	if config == nil || config.QueueURL == "" {
		return nil, errors.NewAppError(errors.ErrorTypeIngest, errors.CodeReceiveFailed, "queue URL is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(config.Region)})
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeIngest, errors.CodeConnectionFailed,
			"failed to create AWS session")
	}

	if config.MaxMessages <= 0 {
		config.MaxMessages = 10
	}

	return &Consumer{
		config:   config,
		client:   sqs.New(sess),
		appender: appender,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run receives and appends batches until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.WithField("queue", c.config.QueueURL).Info("Ingestion consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Ingestion consumer stopping")
			return ctx.Err()
		default:
		}

		if err := c.ConsumeOnce(ctx); err != nil {
			// Failed batches stay on the queue and redeliver; back off
			// before the next receive.
			c.logger.WithError(err).Error("Batch consume failed")
			sleep := c.sleep
			if sleep == nil {
				sleep = sleepCtx
			}
			if err := sleep(ctx, receiveBackoff); err != nil {
				c.logger.Info("Ingestion consumer stopping")
				return err
			}
		}
	}
}

// ConsumeOnce receives one message batch, appends its readings to today's
// partition and deletes the consumed messages. The appended batch preserves
// the received message order. On append failure the messages are not
// deleted, so the queue redelivers them and duplicates can appear in the
// partition (at-least-once delivery).
func (c *Consumer) ConsumeOnce(ctx context.Context) error {
	out, err := c.client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.config.QueueURL),
		MaxNumberOfMessages: aws.Int64(c.config.MaxMessages),
		WaitTimeSeconds:     aws.Int64(int64(c.config.WaitTime / time.Second)),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeIngest, errors.CodeReceiveFailed,
			"failed to receive from queue")
	}
	if len(out.Messages) == 0 {
		return nil
	}

	raw := make([]string, 0, len(out.Messages))
	for _, msg := range out.Messages {
		raw = append(raw, aws.StringValue(msg.Body))
	}

	readings := partition.ParseBatch(raw, c.logger)
	if skipped := len(raw) - len(readings); skipped > 0 {
		observability.MalformedEntries.Add(float64(skipped))
	}

	key := partition.Key(c.now().UTC())
	if err := c.appender.Append(ctx, readings, key); err != nil {
		return err
	}
	observability.ReadingsAppended.Add(float64(len(readings)))

	for _, msg := range out.Messages {
		_, err := c.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.config.QueueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
		if err != nil {
			c.logger.WithError(err).Warn("Failed to delete consumed message")
		}
	}

	c.logger.WithFields(logrus.Fields{
		"key":      key,
		"messages": len(out.Messages),
		"readings": len(readings),
	}).Debug("Batch consumed")

	return nil
}
