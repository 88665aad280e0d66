package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// Price is the tariff state and price of a binding over a time interval.
type Price struct {
	BindingID string    `json:"bindingID"`
	TSStart   time.Time `json:"tsStart"`
	TSEnd     time.Time `json:"tsEnd"`

	// LowTariff is true when the HDO signal selects the low tariff.
	LowTariff bool `json:"lowTariff"`

	// Price is the configured low or high tariff price, in whatever unit the
	// binding was configured with.
	Price float64 `json:"price"`
}

// Forecast is an hourly sequence of prices in chronological order.
type Forecast []Price

// States returns the forecast keyed by hour with the tariff state as value.
func (f Forecast) States() HourlyValues {
	out := make(HourlyValues, len(f))
	for i, p := range f {
		out[i] = HourlyValue{Start: p.TSStart, Value: p.LowTariff}
	}
	return out
}

// Prices returns the forecast keyed by hour with the price as value.
func (f Forecast) Prices() HourlyValues {
	out := make(HourlyValues, len(f))
	for i, p := range f {
		out[i] = HourlyValue{Start: p.TSStart, Value: p.Price}
	}
	return out
}

// HourlyValue is one entry of HourlyValues.
type HourlyValue struct {
	Start time.Time
	Value any
}

// HourlyValues marshals as a JSON object keyed by the RFC 3339 local start
// of each hour, keeping the slice order instead of sorting keys.
type HourlyValues []HourlyValue

func (h HourlyValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(v.Start.Format(time.RFC3339))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
