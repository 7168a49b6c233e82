package forecast

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmolab/atmocast/internal/features"
	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/internal/storage/memory"
	apperrors "github.com/atmolab/atmocast/pkg/errors"
	"github.com/atmolab/atmocast/pkg/models"
)

// fakeInvoker answers every invocation with a per-endpoint constant and
// records the vectors it was asked to score.
type fakeInvoker struct {
	values  map[string]float64
	vectors map[string][][]float64
	failOn  string
	failAt  int
	calls   int
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		values: map[string]float64{
			"temperature-ep": 21.5,
			"humidity-ep":    48.123456,
			"pressure-ep":    1012.25,
		},
		vectors: make(map[string][][]float64),
		failAt:  -1,
	}
}

func (f *fakeInvoker) InvokeEndpoint(ctx context.Context, name string, vector []float64) (float64, error) {
	f.calls++
	if name == f.failOn || (f.failAt >= 0 && f.calls > f.failAt) {
		return 0, fmt.Errorf("endpoint %s unavailable", name)
	}
	f.vectors[name] = append(f.vectors[name], vector)
	return f.values[name], nil
}

func testEndpoints() map[models.Metric]string {
	return map[models.Metric]string{
		models.MetricTemperature: "temperature-ep",
		models.MetricHumidity:    "humidity-ep",
		models.MetricPressure:    "pressure-ep",
	}
}

// fullAverages covers every 100-second bucket of a day.
func fullAverages() map[int]features.BucketAverage {
	averages := make(map[int]features.BucketAverage)
	for bucket := 0; bucket < 24*60*60; bucket += features.BucketWidth {
		averages[bucket] = features.BucketAverage{
			Temperature: 20,
			Humidity:    50,
			Pressure:    1010,
			Count:       3,
		}
	}
	return averages
}

func newTestForecaster(invoker Invoker) *Forecaster {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewForecaster(invoker, logger)
}

func TestForecastDayProducesAllSlots(t *testing.T) {
	invoker := newFakeInvoker()
	f := newTestForecaster(invoker)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday
	batch, err := f.ForecastDay(context.Background(), testEndpoints(), fullAverages(), day)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", batch.Date)
	require.Len(t, batch.Entries, models.SlotsPerDay)

	first := batch.Entries[0]
	assert.Equal(t, day.UnixMilli(), first.T)
	assert.Equal(t, 21.5, first.Tmp)
	assert.Equal(t, 48.12, first.Hum)
	assert.Equal(t, 1012.25, first.Pr)

	// Slots are 10 minutes apart.
	assert.Equal(t, int64(600_000), batch.Entries[1].T-batch.Entries[0].T)
	last := batch.Entries[models.SlotsPerDay-1]
	assert.Equal(t, day.Add(23*time.Hour+50*time.Minute).UnixMilli(), last.T)
}

func TestForecastDayFeatureVectors(t *testing.T) {
	invoker := newFakeInvoker()
	f := newTestForecaster(invoker)

	// 2024-01-01 is a Monday, so the first one-hot column is set.
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.ForecastDay(context.Background(), testEndpoints(), fullAverages(), day)
	require.NoError(t, err)

	temperature := invoker.vectors["temperature-ep"]
	require.Len(t, temperature, models.SlotsPerDay)
	assert.Equal(t, []float64{0, 50, 1010, 1, 0, 0, 0, 0, 0, 0}, temperature[0])

	// Slot at 00:10 floors to the 600-second bucket.
	assert.Equal(t, float64(600), temperature[1][0])

	// The target metric never appears in its own vector: the humidity model
	// sees temperature and pressure.
	humidity := invoker.vectors["humidity-ep"]
	assert.Equal(t, []float64{0, 20, 1010, 1, 0, 0, 0, 0, 0, 0}, humidity[0])
}

func TestForecastDayFloorsSlotToBucket(t *testing.T) {
	invoker := newFakeInvoker()
	f := newTestForecaster(invoker)

	// Only bucketed averages exist, and slots at 600s intervals land exactly
	// on 100-second bucket boundaries.
	averages := fullAverages()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	batch, err := f.ForecastDay(context.Background(), testEndpoints(), averages, day)
	require.NoError(t, err)
	assert.Len(t, batch.Entries, models.SlotsPerDay)
}

func TestForecastDayMissingBucket(t *testing.T) {
	invoker := newFakeInvoker()
	f := newTestForecaster(invoker)

	averages := fullAverages()
	delete(averages, 7200)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.ForecastDay(context.Background(), testEndpoints(), averages, day)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeMissingBucket, appErr.Code)
	assert.ErrorIs(t, err, apperrors.ErrMissingBucket)
}

func TestForecastDayAbortsOnInvocationFailure(t *testing.T) {
	invoker := newFakeInvoker()
	invoker.failOn = "pressure-ep"
	f := newTestForecaster(invoker)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batch, err := f.ForecastDay(context.Background(), testEndpoints(), fullAverages(), day)
	require.Error(t, err)
	assert.Nil(t, batch)
}

func TestRunAppendsEachDay(t *testing.T) {
	invoker := newFakeInvoker()
	f := newTestForecaster(invoker)

	store := memory.NewStore()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	appender := partition.NewAppender(store, logger)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batches, err := f.Run(context.Background(), appender, testEndpoints(), fullAverages(), start)
	require.NoError(t, err)
	require.Len(t, batches, HorizonDays)

	for offset := 0; offset < HorizonDays; offset++ {
		date := start.AddDate(0, 0, offset).Format(partition.DateLayout)
		part, err := appender.Load(context.Background(), partition.PredictionsKey(date))
		require.NoError(t, err)
		assert.Len(t, part.Entries, models.SlotsPerDay, "day %s", date)
	}
}

func TestRunStopsWithoutPartialDay(t *testing.T) {
	invoker := newFakeInvoker()
	// First day succeeds (144 slots * 3 metrics), then invocations fail.
	invoker.failAt = models.SlotsPerDay * 3
	f := newTestForecaster(invoker)

	store := memory.NewStore()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	appender := partition.NewAppender(store, logger)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batches, err := f.Run(context.Background(), appender, testEndpoints(), fullAverages(), start)
	require.Error(t, err)
	assert.Len(t, batches, 1)

	// The completed day was written, the failed day was not.
	_, found, err := store.Get(context.Background(), partition.PredictionsKey("2024-01-01"))
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = store.Get(context.Background(), partition.PredictionsKey("2024-01-02"))
	require.NoError(t, err)
	assert.False(t, found)
}
