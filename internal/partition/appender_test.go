package partition

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmolab/atmocast/internal/storage/memory"
	"github.com/atmolab/atmocast/pkg/models"
)

func newTestAppender() (*Appender, *memory.Store) {
	store := memory.NewStore()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewAppender(store, logger), store
}

func TestAppendCreatesPartition(t *testing.T) {
	appender, store := newTestAppender()
	ctx := context.Background()

	reading := models.Reading{T: 12345, Tmp: 28, Hum: 54.6, Pr: 1013.25}
	require.NoError(t, appender.Append(ctx, []models.Reading{reading}, "2024-05-01"))

	part, err := appender.Load(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, []models.Reading{reading}, part.Entries)

	found, err := store.Exists(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestAppendPreservesOrder(t *testing.T) {
	appender, _ := newTestAppender()
	ctx := context.Background()

	first := models.Reading{T: 12345, Tmp: 28, Hum: 54.6, Pr: 1013.25}
	second := models.Reading{T: 54321, Tmp: 30, Hum: 60, Pr: 1014.25}

	require.NoError(t, appender.Append(ctx, []models.Reading{first}, "2024-05-01"))
	require.NoError(t, appender.Append(ctx, []models.Reading{second}, "2024-05-01"))

	part, err := appender.Load(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, []models.Reading{first, second}, part.Entries)
}

func TestAppendConcatenatesBatches(t *testing.T) {
	appender, _ := newTestAppender()
	ctx := context.Background()

	b1 := []models.Reading{
		{T: 1000, Tmp: 20, Hum: 40, Pr: 1000},
		{T: 2000, Tmp: 21, Hum: 41, Pr: 1001},
	}
	b2 := []models.Reading{
		{T: 3000, Tmp: 22, Hum: 42, Pr: 1002},
	}

	require.NoError(t, appender.Append(ctx, b1, "2024-05-02"))
	require.NoError(t, appender.Append(ctx, b2, "2024-05-02"))

	part, err := appender.Load(ctx, "2024-05-02")
	require.NoError(t, err)
	assert.Equal(t, append(append([]models.Reading{}, b1...), b2...), part.Entries)
}

func TestAppendEmptyBatchDoesNotTouchStorage(t *testing.T) {
	appender, store := newTestAppender()
	ctx := context.Background()

	// Absent key stays absent.
	require.NoError(t, appender.Append(ctx, nil, "2024-05-03"))
	found, err := store.Exists(ctx, "2024-05-03")
	require.NoError(t, err)
	assert.False(t, found)

	// Existing key stays unchanged.
	reading := models.Reading{T: 1, Tmp: 1, Hum: 1, Pr: 1}
	require.NoError(t, appender.Append(ctx, []models.Reading{reading}, "2024-05-04"))
	before, _, err := store.Get(ctx, "2024-05-04")
	require.NoError(t, err)

	require.NoError(t, appender.Append(ctx, []models.Reading{}, "2024-05-04"))
	after, _, err := store.Get(ctx, "2024-05-04")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadAbsentPartitionIsEmpty(t *testing.T) {
	appender, _ := newTestAppender()

	part, err := appender.Load(context.Background(), "1999-01-01")
	require.NoError(t, err)
	assert.Empty(t, part.Entries)
}

func TestKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 2024-05-01 07:00 +09:00 is 2024-04-30 22:00 UTC.
	ts := time.Date(2024, 5, 1, 7, 0, 0, 0, loc)
	assert.Equal(t, "2024-04-30", Key(ts))
}

func TestPredictionsKey(t *testing.T) {
	assert.Equal(t, "2024-05-01-predictions", PredictionsKey("2024-05-01"))
}

func TestParseBatchSkipsMalformedEntries(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	raw := []string{
		`{"t":1000,"tmp":20,"hum":40,"pr":1000}`,
		`not json`,
		`{"t":0,"tmp":1,"hum":1,"pr":1}`, // invalid timestamp
		`{"t":2000,"tmp":21,"hum":41,"pr":1001}`,
	}

	readings := ParseBatch(raw, logger)
	require.Len(t, readings, 2)
	assert.Equal(t, int64(1000), readings[0].T)
	assert.Equal(t, int64(2000), readings[1].T)
}
