package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Sentinel is the wire value for a field that was not present on the page.
// It never denotes a real measurement.
const Sentinel = -1

var (
	sentinelJSON = []byte("-1")
	nullJSON     = []byte("null")
)

// OptInt is an integer that may be absent.
type OptInt struct {
	Value int64
	Valid bool
}

// SomeInt returns a present OptInt.
func SomeInt(v int64) OptInt { return OptInt{Value: v, Valid: true} }

// Wire returns the value as written to stores: the integer, or Sentinel.
func (o OptInt) Wire() int64 {
	if !o.Valid {
		return Sentinel
	}
	return o.Value
}

func (o OptInt) String() string { return strconv.FormatInt(o.Wire(), 10) }

func (o OptInt) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, o.Wire(), 10), nil
}

func (o *OptInt) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, nullJSON) {
		*o = OptInt{}
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == Sentinel {
		*o = OptInt{}
		return nil
	}
	*o = SomeInt(v)
	return nil
}

// OptFloat is a float that may be absent.
type OptFloat struct {
	Value float64
	Valid bool
}

// SomeFloat returns a present OptFloat.
func SomeFloat(v float64) OptFloat { return OptFloat{Value: v, Valid: true} }

// Wire returns the value as written to stores: the float, or Sentinel.
func (o OptFloat) Wire() float64 {
	if !o.Valid {
		return Sentinel
	}
	return o.Value
}

func (o OptFloat) String() string { return strconv.FormatFloat(o.Wire(), 'f', -1, 64) }

func (o OptFloat) MarshalJSON() ([]byte, error) {
	if err := checkFinite(o.Wire()); err != nil {
		return nil, err
	}
	return strconv.AppendFloat(nil, o.Wire(), 'f', -1, 64), nil
}

func checkFinite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v has no JSON form", ErrMalformedValue, f)
	}
	return nil
}

func (o *OptFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, nullJSON) {
		*o = OptFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == Sentinel {
		*o = OptFloat{}
		return nil
	}
	*o = SomeFloat(v)
	return nil
}

// OptString is a string that may be absent. Absent strings are written as
// the number -1, matching the historical output of the scraper.
type OptString struct {
	Value string
	Valid bool
}

// SomeString returns a present OptString.
func SomeString(v string) OptString { return OptString{Value: v, Valid: true} }

// Wire returns the value for stores that have a single string column.
func (o OptString) Wire() string {
	if !o.Valid {
		return strconv.Itoa(Sentinel)
	}
	return o.Value
}

func (o OptString) String() string { return o.Wire() }

func (o OptString) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return sentinelJSON, nil
	}
	return json.Marshal(o.Value)
}

func (o *OptString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, nullJSON) || bytes.Equal(b, sentinelJSON) {
		*o = OptString{}
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = SomeString(v)
	return nil
}

// Numeric is a number read from the page that is either an integer or a
// decimal, depending on how it was written.
type Numeric struct {
	Int     int64
	Float   float64
	IsFloat bool
	Valid   bool
}

// IntNumeric returns a present integer Numeric.
func IntNumeric(v int64) Numeric { return Numeric{Int: v, Valid: true} }

// FloatNumeric returns a present decimal Numeric.
func FloatNumeric(v float64) Numeric { return Numeric{Float: v, IsFloat: true, Valid: true} }

// Float64 returns the value as a float, or Sentinel when absent.
func (n Numeric) Float64() float64 {
	switch {
	case !n.Valid:
		return Sentinel
	case n.IsFloat:
		return n.Float
	default:
		return float64(n.Int)
	}
}

// OptFloat converts to an OptFloat, keeping absence.
func (n Numeric) OptFloat() OptFloat {
	if !n.Valid {
		return OptFloat{}
	}
	return SomeFloat(n.Float64())
}

func (n Numeric) String() string {
	switch {
	case !n.Valid:
		return strconv.Itoa(Sentinel)
	case n.IsFloat:
		return strconv.FormatFloat(n.Float, 'f', -1, 64)
	default:
		return strconv.FormatInt(n.Int, 10)
	}
}

func (n Numeric) MarshalJSON() ([]byte, error) {
	if err := checkFinite(n.Float64()); err != nil {
		return nil, err
	}
	return []byte(n.String()), nil
}

func (n *Numeric) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, nullJSON) {
		*n = Numeric{}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("numeric: %w", err)
	}
	if i, err := num.Int64(); err == nil {
		if i == Sentinel {
			*n = Numeric{}
			return nil
		}
		*n = IntNumeric(i)
		return nil
	}
	f, err := num.Float64()
	if err != nil {
		return fmt.Errorf("numeric: %w", err)
	}
	*n = FloatNumeric(f)
	return nil
}
