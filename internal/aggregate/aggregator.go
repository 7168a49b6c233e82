// Package aggregate compacts a rolling window of daily partitions into one
// tabular training dataset.
package aggregate

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/internal/storage"
	"github.com/atmolab/atmocast/pkg/errors"
	"github.com/atmolab/atmocast/pkg/models"
)

// WindowDays is the size of the rolling aggregation window.
const WindowDays = 30

// Header is the fixed dataset column order. Training and forecasting both
// key off this order, so it never changes without retraining everything.
var Header = []string{"day_of_week", "time_of_day", "temperature", "humidity", "pressure"}

// Aggregator builds the rolling 30-day CSV dataset from daily partitions.
type Aggregator struct {
	store  storage.ObjectStore
	logger *logrus.Logger
}

// NewAggregator creates an aggregator reading partitions from store
func NewAggregator(store storage.ObjectStore, logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Aggregator{store: store, logger: logger}
}

// DatasetKey returns the artifact key for a dataset generated on date. The
// key names the generation date, not the data's own range: the dataset is a
// rolling snapshot, not a versioned artifact.
func DatasetKey(date string) string {
	return fmt.Sprintf("aggregates/%s-aggregate-data.csv", date)
}

// BuildDataset scans the 30 dates ending at endDate going backward, flattens
// every reading into a dataset row and writes the CSV artifact back to the
// store. Absent or empty partitions are skipped silently; a window with no
// data at all still produces a header-only CSV. Returns the artifact key.
func (a *Aggregator) BuildDataset(ctx context.Context, endDate time.Time) (string, error) {
	endDate = endDate.UTC()
	a.logger.WithField("end_date", endDate.Format(partition.DateLayout)).Info("Aggregating data from the last 30 days")

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "failed to write dataset header")
	}

	rows := 0
	for i := 0; i < WindowDays; i++ {
		key := partition.Key(endDate.AddDate(0, 0, -i))
		data, found, err := a.store.Get(ctx, key)
		if err != nil {
			return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
				"failed to load partition '"+key+"'")
		}
		if !found {
			a.logger.WithField("key", key).Debug("No data found, skipping")
			continue
		}

		part, err := models.ParsePartition(data)
		if err != nil {
			return "", err
		}
		if len(part.Entries) == 0 {
			a.logger.WithField("key", key).Debug("Empty partition, skipping")
			continue
		}

		a.logger.WithField("key", key).Info("Appending partition data")
		for _, r := range part.Entries {
			if err := w.Write(rowFor(r)); err != nil {
				return "", errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "failed to write dataset row")
			}
			rows++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "failed to flush dataset")
	}

	key := DatasetKey(endDate.Format(partition.DateLayout))
	if err := a.store.Put(ctx, key, buf.Bytes()); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to store dataset '"+key+"'")
	}

	a.logger.WithFields(logrus.Fields{
		"key":  key,
		"rows": rows,
	}).Info("Aggregate dataset stored")

	return key, nil
}

// rowFor converts a reading into a CSV record. The epoch is truncated to
// whole seconds first; day of week and time of day are both derived in UTC.
// Time of day is kept at full second resolution here, bucketing happens at
// averaging time.
func rowFor(r models.Reading) []string {
	ts := time.Unix(r.T/1000, 0).UTC()
	midnight := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	timeOfDay := int(ts.Sub(midnight).Seconds())

	return []string{
		ts.Weekday().String(),
		strconv.Itoa(timeOfDay),
		formatFloat(r.Tmp),
		formatFloat(r.Hum),
		formatFloat(r.Pr),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LoadDataset reads a stored CSV dataset back into rows for training and
// averaging.
func (a *Aggregator) LoadDataset(ctx context.Context, key string) ([]models.DatasetRow, error) {
	data, found, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"failed to load dataset '"+key+"'")
	}
	if !found {
		return nil, errors.WrapError(errors.ErrDataNotFound, errors.ErrorTypeStorage, errors.CodeDataNotFound,
			"dataset '"+key+"' not found")
	}
	return ParseDataset(bytes.NewReader(data))
}

// ParseDataset decodes CSV dataset content. The header row is required.
func ParseDataset(r io.Reader) ([]models.DatasetRow, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "dataset is empty")
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "failed to read dataset header")
	}
	if len(header) != len(Header) {
		return nil, errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("dataset header has %d columns, expected %d", len(header), len(Header)))
	}

	var rows []models.DatasetRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "failed to read dataset row")
		}

		timeOfDay, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "invalid time_of_day value")
		}
		tmp, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "invalid temperature value")
		}
		hum, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "invalid humidity value")
		}
		pr, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "invalid pressure value")
		}

		rows = append(rows, models.DatasetRow{
			DayOfWeek:   record[0],
			TimeOfDay:   timeOfDay,
			Temperature: tmp,
			Humidity:    hum,
			Pressure:    pr,
		})
	}

	return rows, nil
}
