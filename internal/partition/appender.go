// Package partition implements the append engine for daily reading
// partitions.
package partition

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/storage"
	"github.com/atmolab/atmocast/pkg/errors"
	"github.com/atmolab/atmocast/pkg/models"
)

// DateLayout is the partition key layout. All date keys are derived in UTC
// so the aggregator and forecaster always agree on day boundaries.
const DateLayout = "2006-01-02"

// Key returns the daily partition key for t.
func Key(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// PredictionsKey returns the partition key holding forecasts for date.
func PredictionsKey(date string) string {
	return date + "-predictions"
}

// Appender merges reading batches into daily partitions held in an object
// store.
type Appender struct {
	store  storage.ObjectStore
	logger *logrus.Logger
}

// NewAppender creates an append engine backed by store
func NewAppender(store storage.ObjectStore, logger *logrus.Logger) *Appender {
	if logger == nil {
		logger = logrus.New()
	}
	return &Appender{store: store, logger: logger}
}

// Append concatenates readings onto the partition at key, creating the
// partition on first write. An empty batch returns immediately without
// touching storage. The write is whole-file read-merge-write: concurrent
// appenders to the same key race and the last writer wins, so callers that
// need stronger guarantees must serialize writers per key.
func (a *Appender) Append(ctx context.Context, readings []models.Reading, key string) error {
	if len(readings) == 0 {
		a.logger.WithField("key", key).Debug("Empty batch, skipping append")
		return nil
	}

	part, err := a.load(ctx, key)
	if err != nil {
		return err
	}

	part.Entries = append(part.Entries, readings...)

	data, err := part.Marshal()
	if err != nil {
		return err
	}

	if err := a.store.Put(ctx, key, data); err != nil {
		a.logger.WithError(err).WithField("key", key).Error("Partition write failed")
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeAppendFailed,
			"failed to write partition '"+key+"'")
	}

	a.logger.WithFields(logrus.Fields{
		"key":     key,
		"batch":   len(readings),
		"entries": len(part.Entries),
	}).Info("Partition updated")

	return nil
}

// Load returns the partition at key, or an empty partition if absent.
func (a *Appender) Load(ctx context.Context, key string) (*models.Partition, error) {
	return a.load(ctx, key)
}

func (a *Appender) load(ctx context.Context, key string) (*models.Partition, error) {
	data, found, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"failed to read partition '"+key+"'")
	}
	if !found {
		return &models.Partition{Entries: []models.Reading{}}, nil
	}
	return models.ParsePartition(data)
}

// ParseBatch decodes raw queue payloads into readings. Malformed or invalid
// records are logged and skipped rather than failing the batch: with
// at-least-once delivery a poison record would otherwise wedge the queue.
func ParseBatch(raw []string, logger *logrus.Logger) []models.Reading {
	if logger == nil {
		logger = logrus.New()
	}

	readings := make([]models.Reading, 0, len(raw))
	for i, body := range raw {
		var r models.Reading
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			logger.WithError(err).WithField("index", i).Warn("Skipping malformed batch entry")
			continue
		}
		if err := r.Validate(); err != nil {
			logger.WithError(err).WithField("index", i).Warn("Skipping invalid batch entry")
			continue
		}
		readings = append(readings, r)
	}
	return readings
}
