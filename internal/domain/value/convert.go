package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Of converts a Go value into a Value
func Of(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Float(f), nil
	case decimal.Decimal:
		return Money(t), nil
	case SecurityID:
		return Security(t.Symbol, t.Market), nil
	case time.Time:
		return Time(t), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", x)
}

// MustOf is Of for literals known to be convertible
func MustOf(x any) Value {
	v, err := Of(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Values converts a literal list, e.g. Values("A", 10)
func Values(xs ...any) []Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[i] = MustOf(x)
	}
	return out
}

// Coerce converts loosely typed input (decoded JSON, console tokens) into
// a value of the given kind. nil always becomes Null.
func Coerce(kind Kind, x any) (Value, error) {
	if x == nil {
		return Null(), nil
	}
	if v, ok := x.(Value); ok {
		if v.kind == kind || v.kind == KindNull {
			return v, nil
		}
		x = v.Interface()
	}

	switch kind {
	case KindBool:
		switch t := x.(type) {
		case bool:
			return Bool(t), nil
		case string:
			b, err := strconv.ParseBool(t)
			if err != nil {
				return Value{}, coerceError(kind, x)
			}
			return Bool(b), nil
		}

	case KindInt:
		switch t := x.(type) {
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				return Value{}, coerceError(kind, x)
			}
			return Int(i), nil
		case json.Number:
			i, err := t.Int64()
			if err != nil {
				return Value{}, coerceError(kind, x)
			}
			return Int(i), nil
		case float64:
			i, ok := integral(t)
			if !ok {
				return Value{}, coerceError(kind, x)
			}
			return Int(i), nil
		}
		if v, err := Of(x); err == nil && v.kind == KindInt {
			return v, nil
		}

	case KindFloat:
		switch t := x.(type) {
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return Value{}, coerceError(kind, x)
			}
			return Float(f), nil
		case json.Number:
			f, err := t.Float64()
			if err != nil {
				return Value{}, coerceError(kind, x)
			}
			return Float(f), nil
		}
		if v, err := Of(x); err == nil && v.isNumeric() {
			if v.kind == KindInt {
				return Float(float64(v.num)), nil
			}
			return v, nil
		}

	case KindString:
		if s, ok := x.(string); ok {
			return String(s), nil
		}

	case KindMoney:
		switch t := x.(type) {
		case string:
			return MoneyFromString(t)
		case json.Number:
			return MoneyFromString(t.String())
		case decimal.Decimal:
			return Money(t), nil
		case float64:
			return Money(decimal.NewFromFloat(t)), nil
		}
		if v, err := Of(x); err == nil && v.kind == KindInt {
			return Money(decimal.NewFromInt(v.num)), nil
		}

	case KindCurrency:
		if s, ok := x.(string); ok {
			return Currency(s)
		}

	case KindSecurity:
		switch t := x.(type) {
		case string:
			id := ParseSecurity(t)
			return Security(id.Symbol, id.Market), nil
		case SecurityID:
			return Security(t.Symbol, t.Market), nil
		case map[string]any:
			sym, _ := t["symbol"].(string)
			mkt, _ := t["market"].(string)
			if sym == "" {
				return Value{}, coerceError(kind, x)
			}
			return Security(sym, mkt), nil
		}

	case KindTime:
		switch t := x.(type) {
		case string:
			ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
			if err != nil {
				return Value{}, coerceError(kind, x)
			}
			return Time(ts), nil
		case json.Number:
			ms, err := t.Int64()
			if err != nil {
				return Value{}, coerceError(kind, x)
			}
			return Time(time.UnixMilli(ms).UTC()), nil
		case time.Time:
			return Time(t), nil
		}
	}

	return Value{}, coerceError(kind, x)
}

func coerceError(kind Kind, x any) error {
	return fmt.Errorf("cannot convert %v (%T) to %s", x, x, kind)
}

// MarshalJSON writes money as a quoted decimal string so no precision is
// lost, and security/currency/time values as their text form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.num == 1)
	case KindInt:
		return json.Marshal(v.num)
	case KindFloat:
		if math.IsNaN(v.flt) || math.IsInf(v.flt, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.flt)
	case KindMoney:
		return v.dec.MarshalJSON()
	}
	return json.Marshal(v.String())
}
