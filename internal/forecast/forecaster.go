// Package forecast produces 7-day-ahead, 10-minute-resolution predictions
// for every metric by invoking the deployed per-metric models.
package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/features"
	"github.com/atmolab/atmocast/internal/observability"
	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/pkg/errors"
	"github.com/atmolab/atmocast/pkg/models"
)

// HorizonDays is the forecast horizon.
const HorizonDays = 7

// Invoker is the inference slice of the provisioning boundary.
type Invoker interface {
	InvokeEndpoint(ctx context.Context, name string, features []float64) (float64, error)
}

// Appender is the slice of the append engine the forecaster writes through.
type Appender interface {
	Append(ctx context.Context, readings []models.Reading, key string) error
}

// Forecaster assembles per-slot feature vectors from bucketed historical
// averages and queries one endpoint per metric.
type Forecaster struct {
	invoker Invoker
	logger  *logrus.Logger
}

// NewForecaster creates a forecaster
func NewForecaster(invoker Invoker, logger *logrus.Logger) *Forecaster {
	if logger == nil {
		logger = logrus.New()
	}
	return &Forecaster{invoker: invoker, logger: logger}
}

// ForecastDay predicts all 144 slots of one future calendar day. The batch
// is returned only when every slot succeeded; any failure aborts the day so
// partial days are never produced.
func (f *Forecaster) ForecastDay(ctx context.Context, endpoints map[models.Metric]string, averages map[int]features.BucketAverage, day time.Time) (*models.ForecastBatch, error) {
	day = day.UTC()
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayIndex := features.WeekdayIndex(midnight.Weekday())
	date := midnight.Format(partition.DateLayout)

	entries := make([]models.Reading, 0, models.SlotsPerDay)
	for timeOfDay := 0; timeOfDay < 24*60*60; timeOfDay += models.SlotInterval {
		// Floor to the training bucket so the slot looks up the same
		// averages the models were trained against.
		bucket := features.Bucket(timeOfDay)
		avg, ok := averages[bucket]
		if !ok {
			return nil, errors.WrapError(errors.ErrMissingBucket, errors.ErrorTypeForecast, errors.CodeMissingBucket,
				fmt.Sprintf("no historical average for time of day %d", bucket))
		}

		entry := models.Reading{T: midnight.Add(time.Duration(timeOfDay) * time.Second).UnixMilli()}
		for _, metric := range models.Metrics() {
			endpoint, ok := endpoints[metric]
			if !ok {
				return nil, errors.NewForecastError(errors.CodeForecastFailed,
					fmt.Sprintf("no endpoint for metric %q", metric))
			}

			otherValues := make(map[models.Metric]float64, 2)
			for _, m := range features.Others(metric) {
				otherValues[m] = avg.Metric(m)
			}
			vector := features.Vector(metric, bucket, otherValues, dayIndex)

			value, err := f.invoker.InvokeEndpoint(ctx, endpoint, vector)
			if err != nil {
				return nil, errors.WrapError(err, errors.ErrorTypeForecast, errors.CodeForecastFailed,
					fmt.Sprintf("prediction failed for %s at %s+%ds", metric, date, timeOfDay))
			}

			setMetric(&entry, metric, round2(value))
		}
		entries = append(entries, entry)
	}

	observability.ForecastSlots.Add(float64(len(entries)))
	f.logger.WithFields(logrus.Fields{
		"date":  date,
		"slots": len(entries),
	}).Info("Forecast day completed")

	return &models.ForecastBatch{Date: date, Entries: entries}, nil
}

// Run forecasts the full horizon starting at startDate and appends each
// completed day under its <date>-predictions partition. A day is written
// only after all of its slots succeeded; a failure stops the run without
// touching the failed day's partition.
func (f *Forecaster) Run(ctx context.Context, appender Appender, endpoints map[models.Metric]string, averages map[int]features.BucketAverage, startDate time.Time) ([]models.ForecastBatch, error) {
	batches := make([]models.ForecastBatch, 0, HorizonDays)
	for offset := 0; offset < HorizonDays; offset++ {
		day := startDate.UTC().AddDate(0, 0, offset)
		batch, err := f.ForecastDay(ctx, endpoints, averages, day)
		if err != nil {
			return batches, err
		}

		key := partition.PredictionsKey(batch.Date)
		if err := appender.Append(ctx, batch.Entries, key); err != nil {
			return batches, err
		}
		batches = append(batches, *batch)
	}
	return batches, nil
}

func setMetric(r *models.Reading, m models.Metric, v float64) {
	switch m {
	case models.MetricTemperature:
		r.Tmp = v
	case models.MetricHumidity:
		r.Hum = v
	case models.MetricPressure:
		r.Pr = v
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
