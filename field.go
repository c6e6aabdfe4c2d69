package fixengine

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abquickfix/fixengine/tag"
)

// Field is one rendered (tag, raw wire value) pair as produced by
// FieldMap.Iter, the sole authoritative source for rendering (spec §4.3).
type Field struct {
	Tag   tag.Tag
	Value []byte
}

// FieldValue is implemented by typed field accessors (StringValue,
// IntValue, DecimalValue, ...) so that FieldMap.GetField/SetField can move
// between the wire's raw bytes and a Go-native representation without the
// caller hand-rolling strconv calls at every call site, mirroring the
// teacher's fix.StringValue/fix.IntValue convention.
type FieldValue interface {
	readString(raw string) error
	writeString() string
}

// StringValue is a raw FIX String/Char/Country/Currency/Exchange field.
type StringValue struct{ Value string }

func (v *StringValue) readString(raw string) error { v.Value = raw; return nil }
func (v *StringValue) writeString() string          { return v.Value }

// CharValue is a single-character FIX Char field.
type CharValue struct{ Value byte }

func (v *CharValue) readString(raw string) error {
	if len(raw) != 1 {
		return errIncorrectDataFormat
	}
	v.Value = raw[0]
	return nil
}
func (v *CharValue) writeString() string { return string(v.Value) }

// BoolValue is a FIX Boolean field ("Y"/"N").
type BoolValue struct{ Value bool }

func (v *BoolValue) readString(raw string) error {
	switch raw {
	case "Y":
		v.Value = true
	case "N":
		v.Value = false
	default:
		return errIncorrectDataFormat
	}
	return nil
}

func (v *BoolValue) writeString() string {
	if v.Value {
		return "Y"
	}
	return "N"
}

// IntValue is a FIX Int/Length/NumInGroup/SeqNum/TagNum field.
type IntValue struct{ Value int }

func (v *IntValue) readString(raw string) error {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errIncorrectDataFormat
	}
	v.Value = n
	return nil
}
func (v *IntValue) writeString() string { return strconv.Itoa(v.Value) }

// DecimalValue is a FIX Float/Amt/Percentage/Price/PriceOffset/Qty field.
// decimal.Decimal is used instead of float64 so price/quantity values
// round-trip the wire exactly (spec §3 FieldType).
type DecimalValue struct{ Value decimal.Decimal }

func (v *DecimalValue) readString(raw string) error {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return errIncorrectDataFormat
	}
	v.Value = d
	return nil
}
func (v *DecimalValue) writeString() string { return v.Value.String() }

// utcTimestampLayout is the FIX UTCTimestamp wire format, with or without
// the optional millisecond component.
const (
	utcTimestampLayout      = "20060102-15:04:05"
	utcTimestampMillisLayout = "20060102-15:04:05.000"
)

// UTCTimestampValue is a FIX UtcTimestamp field (e.g. SendingTime).
type UTCTimestampValue struct{ Value time.Time }

func (v *UTCTimestampValue) readString(raw string) error {
	layout := utcTimestampLayout
	if strings.Contains(raw, ".") {
		layout = utcTimestampMillisLayout
	}
	t, err := time.ParseInLocation(layout, raw, time.UTC)
	if err != nil {
		return errIncorrectDataFormat
	}
	v.Value = t
	return nil
}
func (v *UTCTimestampValue) writeString() string {
	return v.Value.UTC().Format(utcTimestampMillisLayout)
}

// UTCDateValue is a FIX UtcDate (LocalMktDate-shaped) field.
type UTCDateValue struct{ Value time.Time }

const utcDateLayout = "20060102"

func (v *UTCDateValue) readString(raw string) error {
	t, err := time.ParseInLocation(utcDateLayout, raw, time.UTC)
	if err != nil {
		return errIncorrectDataFormat
	}
	v.Value = t
	return nil
}
func (v *UTCDateValue) writeString() string { return v.Value.UTC().Format(utcDateLayout) }

var errIncorrectDataFormat = NewMessageRejectError("incorrect data format", RejectReasonIncorrectDataFormatForValue)
