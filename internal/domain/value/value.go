package value

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which variant a Value holds.
// The order of the constants is the cross-kind sort order.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindMoney
	KindCurrency
	KindSecurity
	KindTime
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindMoney:    "money",
	KindCurrency: "currency",
	KindSecurity: "security",
	KindTime:     "time",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a column type name (as written in config files) to a Kind
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "null":
		return KindNull, nil
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer":
		return KindInt, nil
	case "float", "double":
		return KindFloat, nil
	case "string", "text":
		return KindString, nil
	case "money", "decimal":
		return KindMoney, nil
	case "currency":
		return KindCurrency, nil
	case "security":
		return KindSecurity, nil
	case "time", "timestamp":
		return KindTime, nil
	}
	return KindNull, fmt.Errorf("unknown column type %q", name)
}

// SecurityID names a tradable instrument on a market
type SecurityID struct {
	Symbol string
	Market string
}

func (s SecurityID) String() string {
	if s.Market == "" {
		return s.Symbol
	}
	return s.Symbol + "." + s.Market
}

// ParseSecurity splits "SYM.MKT" on the last dot. A string without a dot
// is a bare symbol.
func ParseSecurity(s string) SecurityID {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return SecurityID{Symbol: s}
	}
	return SecurityID{Symbol: s[:i], Market: s[i+1:]}
}

// Value is an immutable tagged cell value. The kind is fixed when the
// value is built, so comparison never needs to inspect Go types.
type Value struct {
	kind Kind
	num  int64
	flt  float64
	str  string
	mkt  string
	dec  decimal.Decimal
	tm   time.Time
}

func Null() Value { return Value{} }

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

func Int(i int64) Value { return Value{kind: KindInt, num: i} }

func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Money(d decimal.Decimal) Value { return Value{kind: KindMoney, dec: d} }

// MoneyFromString parses a decimal amount such as "101.25"
func MoneyFromString(s string) (Value, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Value{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return Money(d), nil
}

// Currency builds a currency value from an ISO-4217 alphabetic code
func Currency(code string) (Value, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return Value{}, fmt.Errorf("invalid currency code %q", code)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return Value{}, fmt.Errorf("invalid currency code %q", code)
		}
	}
	return Value{kind: KindCurrency, str: code}, nil
}

func Security(symbol, market string) Value {
	return Value{kind: KindSecurity, str: symbol, mkt: market}
}

func Time(t time.Time) Value { return Value{kind: KindTime, tm: t} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Interface returns the underlying Go value
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.num == 1
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindString, KindCurrency:
		return v.str
	case KindMoney:
		return v.dec
	case KindSecurity:
		return SecurityID{Symbol: v.str, Market: v.mkt}
	case KindTime:
		return v.tm
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.num == 1)
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindString, KindCurrency:
		return v.str
	case KindMoney:
		return v.dec.String()
	case KindSecurity:
		return SecurityID{Symbol: v.str, Market: v.mkt}.String()
	case KindTime:
		return v.tm.Format(time.RFC3339Nano)
	}
	return ""
}

func (v Value) isNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// integral reports whether a float holds an exact int64
func integral(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Compare orders two values. Ints and floats compare numerically with
// each other; other mixed kinds order by Kind. Null sorts first.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		if v.isNumeric() && o.isNumeric() {
			return compareNumeric(v, o)
		}
		return cmp.Compare(v.kind, o.kind)
	}
	switch v.kind {
	case KindBool, KindInt:
		return cmp.Compare(v.num, o.num)
	case KindFloat:
		return cmp.Compare(v.flt, o.flt)
	case KindString, KindCurrency:
		return strings.Compare(v.str, o.str)
	case KindMoney:
		return v.dec.Cmp(o.dec)
	case KindSecurity:
		if c := strings.Compare(v.str, o.str); c != 0 {
			return c
		}
		return strings.Compare(v.mkt, o.mkt)
	case KindTime:
		return v.tm.Compare(o.tm)
	}
	return 0
}

func compareNumeric(a, b Value) int {
	if a.kind == KindInt {
		return -compareNumeric(b, a)
	}
	// a is the float, b the int. Compare exactly: float64(b.num) rounds
	// near the int64 limits.
	f := a.flt
	switch {
	case math.IsNaN(f):
		return -1
	case f >= 1<<63:
		return 1
	case f < -(1 << 63):
		return -1
	}
	fl := math.Floor(f)
	i := int64(fl)
	if i < b.num {
		return -1
	}
	if i > b.num || f != fl {
		return 1
	}
	return 0
}

func (v Value) Equal(o Value) bool { return v.Compare(o) == 0 }

// KeyText is the canonical identity text of the value: two values have
// the same KeyText exactly when they are Equal.
func (v Value) KeyText() string {
	switch v.kind {
	case KindNull:
		return "z:"
	case KindBool:
		return "b:" + strconv.FormatBool(v.num == 1)
	case KindInt:
		return "n:" + strconv.FormatInt(v.num, 10)
	case KindFloat:
		if i, ok := integral(v.flt); ok {
			return "n:" + strconv.FormatInt(i, 10)
		}
		return "n:" + strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindString:
		return "s:" + v.str
	case KindMoney:
		return "m:" + v.dec.String()
	case KindCurrency:
		return "c:" + v.str
	case KindSecurity:
		return "x:" + strconv.Itoa(len(v.str)) + ":" + v.str + v.mkt
	case KindTime:
		return "t:" + strconv.FormatInt(v.tm.Unix(), 10) + "." + strconv.Itoa(v.tm.Nanosecond())
	}
	return ""
}
