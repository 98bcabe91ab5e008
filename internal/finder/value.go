package finder

import (
	"math"
	"strconv"
	"strings"
)

// placeholderToken stands in for any value the evaluator could not resolve
// statically. It is kept syntactically plausible so reconstructed SQL can
// still be handed to the validator, which maps it to a dummy literal.
const placeholderToken = "{PLACEHOLDER}"

// ValueKind tags the variants of Value.
type ValueKind int

const (
	// KindStr is a string value.
	KindStr ValueKind = iota
	// KindInt is an integer, carried as decimal text so that values outside
	// the int64 range survive concatenation-free round trips.
	KindInt
	// KindFloat is a floating point value.
	KindFloat
	// KindBool is a boolean value.
	KindBool
	// KindTuple is an ordered sequence of values.
	KindTuple
	// KindPlaceholder is some non-constant runtime value referenced at its
	// use site. It absorbs under every operator.
	KindPlaceholder
	// KindUnhandled marks a construct the evaluator does not model. Unlike
	// KindPlaceholder it usually aborts the enclosing computation.
	KindUnhandled
)

// Value is the evaluator's representation of a statically-known quantity.
// Values are constructed fresh per evaluated sub-expression and never
// mutated afterwards.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   string
	Float float64
	Bool  bool
	Tuple []Value
}

func strValue(s string) Value      { return Value{Kind: KindStr, Str: s} }
func intValue(s string) Value      { return Value{Kind: KindInt, Int: s} }
func floatValue(f float64) Value   { return Value{Kind: KindFloat, Float: f} }
func boolValue(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func tupleValue(vs []Value) Value  { return Value{Kind: KindTuple, Tuple: vs} }
func placeholderValue() Value      { return Value{Kind: KindPlaceholder} }
func unhandledValue() Value        { return Value{Kind: KindUnhandled} }

// String renders the value the way it would appear spliced into SQL text.
func (v Value) String() string {
	switch v.Kind {
	case KindStr:
		return v.Str
	case KindInt:
		return v.Int
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		// Numeric booleans for maximum db compatibility
		if v.Bool {
			return "1"
		}
		return "0"
	case KindTuple:
		var b strings.Builder
		b.WriteByte('(')
		for i, item := range v.Tuple {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(item.String())
		}
		b.WriteByte(')')
		return b.String()
	case KindPlaceholder:
		return placeholderToken
	default:
		return "<unhandled>"
	}
}

// valueAdd implements "+". String and tuple concatenation, numeric addition,
// boolean OR. A placeholder on either side absorbs the whole operation.
func valueAdd(a, b Value) (Value, bool) {
	if a.Kind == KindPlaceholder || b.Kind == KindPlaceholder {
		return placeholderValue(), true
	}
	switch {
	case a.Kind == KindStr && b.Kind == KindStr:
		return strValue(a.Str + b.Str), true
	case a.Kind == KindInt && b.Kind == KindInt:
		i1, err1 := strconv.ParseInt(a.Int, 10, 64)
		i2, err2 := strconv.ParseInt(b.Int, 10, 64)
		if err1 != nil || err2 != nil {
			return Value{}, false
		}
		return intValue(strconv.FormatInt(i1+i2, 10)), true
	case a.Kind == KindFloat && b.Kind == KindFloat:
		return floatValue(a.Float + b.Float), true
	case a.Kind == KindBool && b.Kind == KindBool:
		return boolValue(a.Bool || b.Bool), true
	case a.Kind == KindTuple && b.Kind == KindTuple:
		joined := make([]Value, 0, len(a.Tuple)+len(b.Tuple))
		joined = append(joined, a.Tuple...)
		joined = append(joined, b.Tuple...)
		return tupleValue(joined), true
	}
	return Value{}, false
}

// valueSub implements "-". Numeric only.
func valueSub(a, b Value) (Value, bool) {
	if a.Kind == KindPlaceholder || b.Kind == KindPlaceholder {
		return placeholderValue(), true
	}
	switch {
	case a.Kind == KindFloat && b.Kind == KindFloat:
		return floatValue(a.Float - b.Float), true
	case a.Kind == KindInt && b.Kind == KindInt:
		i1, err1 := strconv.ParseInt(a.Int, 10, 64)
		i2, err2 := strconv.ParseInt(b.Int, 10, 64)
		if err1 != nil || err2 != nil {
			return Value{}, false
		}
		return intValue(strconv.FormatInt(i1-i2, 10)), true
	}
	return Value{}, false
}

// valueMul implements "*". Numeric multiplication plus sequence repetition
// (string * int and its commuted form).
func valueMul(a, b Value) (Value, bool) {
	if a.Kind == KindPlaceholder || b.Kind == KindPlaceholder {
		return placeholderValue(), true
	}
	switch {
	case a.Kind == KindFloat && b.Kind == KindFloat:
		return floatValue(a.Float * b.Float), true
	case a.Kind == KindInt && b.Kind == KindInt:
		i1, err1 := strconv.ParseInt(a.Int, 10, 64)
		i2, err2 := strconv.ParseInt(b.Int, 10, 64)
		if err1 != nil || err2 != nil {
			return Value{}, false
		}
		return intValue(strconv.FormatInt(i1*i2, 10)), true
	case a.Kind == KindStr && b.Kind == KindInt:
		return repeatStr(a.Str, b.Int)
	case a.Kind == KindInt && b.Kind == KindStr:
		return repeatStr(b.Str, a.Int)
	}
	return Value{}, false
}

func repeatStr(s, count string) (Value, bool) {
	n, err := strconv.ParseUint(count, 10, 32)
	if err != nil {
		return Value{}, false
	}
	return strValue(strings.Repeat(s, int(n))), true
}

// valueDiv implements "/". Division by zero, NaN or an infinite divisor is
// not resolvable.
func valueDiv(a, b Value) (Value, bool) {
	if a.Kind == KindPlaceholder || b.Kind == KindPlaceholder {
		return placeholderValue(), true
	}
	switch {
	case a.Kind == KindFloat && b.Kind == KindFloat:
		if b.Float == 0 || math.IsNaN(b.Float) || math.IsInf(b.Float, 0) {
			return Value{}, false
		}
		return floatValue(a.Float / b.Float), true
	case a.Kind == KindInt && b.Kind == KindInt:
		i1, err1 := strconv.ParseInt(a.Int, 10, 64)
		i2, err2 := strconv.ParseInt(b.Int, 10, 64)
		if err1 != nil || err2 != nil || i2 == 0 {
			return Value{}, false
		}
		return intValue(strconv.FormatInt(i1/i2, 10)), true
	}
	return Value{}, false
}
