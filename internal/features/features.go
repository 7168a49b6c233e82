// Package features turns aggregate dataset rows into model-ready feature
// vectors and bucketed time-of-day averages.
//
// The feature column order is defined exactly once, by Vector. Training
// frames and forecast-time vectors are both built through it, so the two
// sides can never drift apart. The order is:
//
//	[time_of_day, <other metric A>, <other metric B>, Monday..Sunday one-hot]
//
// where the other metrics appear in the canonical models.Metrics order with
// the target metric removed.
package features

import (
	"fmt"
	"time"

	"github.com/atmolab/atmocast/pkg/errors"
	"github.com/atmolab/atmocast/pkg/models"
)

// BucketWidth is the time-of-day bucket size in seconds. Readings taken at
// slightly different seconds of the same ten-minute slot land in the same
// bucket and average together.
const BucketWidth = 100

// VectorWidth is the length of every feature vector: time_of_day, two
// leave-one-out metrics and seven day-of-week flags.
const VectorWidth = 10

// DayOrder fixes the one-hot day-of-week column order.
var DayOrder = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayIndex returns the one-hot position for a weekday name.
func DayIndex(name string) (int, bool) {
	for i, d := range DayOrder {
		if d == name {
			return i, true
		}
	}
	return 0, false
}

// WeekdayIndex returns the one-hot position for a time.Weekday.
func WeekdayIndex(d time.Weekday) int {
	// time.Weekday counts Sunday=0; our one-hot order starts at Monday.
	return (int(d) + 6) % 7
}

// Bucket floors a time-of-day to its 100-second bucket.
func Bucket(timeOfDay int) int {
	return timeOfDay / BucketWidth * BucketWidth
}

// Others returns the canonical metric order with target removed.
func Others(target models.Metric) []models.Metric {
	others := make([]models.Metric, 0, 2)
	for _, m := range models.Metrics() {
		if m != target {
			others = append(others, m)
		}
	}
	return others
}

// Vector builds one feature vector for target. timeOfDay is used as-is:
// training passes raw seconds, forecasting passes the bucketed value.
// otherValues must hold values for both leave-one-out metrics; dayIndex is
// the Monday-based one-hot position.
func Vector(target models.Metric, timeOfDay int, otherValues map[models.Metric]float64, dayIndex int) []float64 {
	v := make([]float64, 0, VectorWidth)
	v = append(v, float64(timeOfDay))
	for _, m := range Others(target) {
		v = append(v, otherValues[m])
	}
	for i := 0; i < len(DayOrder); i++ {
		if i == dayIndex {
			v = append(v, 1)
		} else {
			v = append(v, 0)
		}
	}
	return v
}

// BucketAverage holds per-metric arithmetic means for one time-of-day
// bucket.
type BucketAverage struct {
	Temperature float64
	Humidity    float64
	Pressure    float64
	Count       int
}

// Metric returns the average for the given metric.
func (b BucketAverage) Metric(m models.Metric) float64 {
	switch m {
	case models.MetricTemperature:
		return b.Temperature
	case models.MetricHumidity:
		return b.Humidity
	case models.MetricPressure:
		return b.Pressure
	}
	return 0
}

// BucketAverages groups dataset rows into 100-second time-of-day buckets
// and computes the per-metric mean of each. This table, not the raw rows,
// is the feature source for forecasting.
func BucketAverages(rows []models.DatasetRow) map[int]BucketAverage {
	sums := make(map[int]*BucketAverage)
	for _, row := range rows {
		b := Bucket(row.TimeOfDay)
		agg, ok := sums[b]
		if !ok {
			agg = &BucketAverage{}
			sums[b] = agg
		}
		agg.Temperature += row.Temperature
		agg.Humidity += row.Humidity
		agg.Pressure += row.Pressure
		agg.Count++
	}

	averages := make(map[int]BucketAverage, len(sums))
	for b, agg := range sums {
		n := float64(agg.Count)
		averages[b] = BucketAverage{
			Temperature: agg.Temperature / n,
			Humidity:    agg.Humidity / n,
			Pressure:    agg.Pressure / n,
			Count:       agg.Count,
		}
	}
	return averages
}

// TrainingFrame builds the design matrix and target vector for one metric's
// model: the target's own column is dropped from the features, day of week
// is one-hot encoded in the fixed Monday..Sunday order, time_of_day stays
// at raw second resolution.
func TrainingFrame(rows []models.DatasetRow, target models.Metric) ([][]float64, []float64, error) {
	if !target.Valid() {
		return nil, nil, errors.WrapError(errors.ErrInvalidMetric, errors.ErrorTypeValidation, errors.CodeInvalidMetric,
			fmt.Sprintf("unknown metric %q", target))
	}
	if len(rows) == 0 {
		return nil, nil, errors.WrapError(errors.ErrEmptyDataset, errors.ErrorTypeValidation, errors.CodeInvalidInput,
			"dataset contains no rows")
	}

	x := make([][]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for _, row := range rows {
		dayIndex, ok := DayIndex(row.DayOfWeek)
		if !ok {
			return nil, nil, errors.NewValidationError(errors.CodeInvalidInput,
				fmt.Sprintf("unknown day_of_week %q", row.DayOfWeek))
		}

		otherValues := make(map[models.Metric]float64, 2)
		for _, m := range Others(target) {
			otherValues[m] = row.Metric(m)
		}

		x = append(x, Vector(target, row.TimeOfDay, otherValues, dayIndex))
		y = append(y, row.Metric(target))
	}

	return x, y, nil
}
