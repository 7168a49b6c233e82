package models

import (
	"encoding/json"
	"time"

	"github.com/atmolab/atmocast/pkg/errors"
)

// Metric identifies one of the measured atmospheric quantities. Each metric
// gets its own regression model whose features are the other two metrics
// plus calendar information.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricPressure    Metric = "pressure"
)

// Metrics returns all metrics in their canonical order. The order matters:
// it fixes the numeric feature columns shared by training and forecasting.
func Metrics() []Metric {
	return []Metric{MetricTemperature, MetricHumidity, MetricPressure}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricTemperature, MetricHumidity, MetricPressure:
		return true
	}
	return false
}

// Reading is a single sensor sample. T is epoch milliseconds. Readings are
// immutable once appended and carry no identity beyond arrival order;
// duplicates are permitted and never deduplicated.
type Reading struct {
	T   int64   `json:"t"`
	Tmp float64 `json:"tmp"`
	Hum float64 `json:"hum"`
	Pr  float64 `json:"pr"`
}

// Validate checks a reading parsed at the ingestion boundary.
func (r *Reading) Validate() error {
	if r.T <= 0 {
		return errors.WrapError(errors.ErrInvalidReading, errors.ErrorTypeValidation, errors.CodeInvalidReading,
			"reading timestamp must be positive epoch milliseconds")
	}
	return nil
}

// Timestamp returns the reading time in UTC.
func (r *Reading) Timestamp() time.Time {
	return time.UnixMilli(r.T).UTC()
}

// Metric returns the reading's value for the given metric.
func (r *Reading) Metric(m Metric) float64 {
	switch m {
	case MetricTemperature:
		return r.Tmp
	case MetricHumidity:
		return r.Hum
	case MetricPressure:
		return r.Pr
	}
	return 0
}

// Partition is one day's accumulated readings, stored as a single JSON
// object under a date key. Entries preserve arrival order.
type Partition struct {
	Entries []Reading `json:"entries"`
}

// ParsePartition decodes a stored partition document.
func ParsePartition(data []byte) (*Partition, error) {
	var p Partition
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeCorruptPartition, "failed to decode partition document")
	}
	if p.Entries == nil {
		p.Entries = []Reading{}
	}
	return &p, nil
}

// Marshal encodes the partition for storage. A nil entry slice is encoded
// as an empty array so stored documents always carry the entries field.
func (p *Partition) Marshal() ([]byte, error) {
	if p.Entries == nil {
		p.Entries = []Reading{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeSerializationFailed, "failed to encode partition document")
	}
	return data, nil
}

// DatasetRow is one row of the aggregate training dataset. TimeOfDay is
// seconds since UTC midnight and is not bucketed here; bucketing happens at
// averaging time.
type DatasetRow struct {
	DayOfWeek   string
	TimeOfDay   int
	Temperature float64
	Humidity    float64
	Pressure    float64
}

// Metric returns the row's value for the given metric.
func (r *DatasetRow) Metric(m Metric) float64 {
	switch m {
	case MetricTemperature:
		return r.Temperature
	case MetricHumidity:
		return r.Humidity
	case MetricPressure:
		return r.Pressure
	}
	return 0
}

// ForecastEntry is one predicted slot. It shares the Reading wire shape so
// prediction partitions can be read back through the same path as raw data.
type ForecastEntry = Reading

// ForecastBatch is one future day's worth of predictions: 144 entries at
// ten-minute resolution.
type ForecastBatch struct {
	Date    string    `json:"date"`
	Entries []Reading `json:"entries"`
}

// SlotsPerDay is the number of forecast slots in one day (24h at 10min).
const SlotsPerDay = 144

// SlotInterval is the forecast resolution in seconds of time-of-day.
const SlotInterval = 600
