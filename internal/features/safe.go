package features

import "math"

// nearZero is the smallest denominator SafeDivide accepts
const nearZero = 1e-12

// SafeDivide returns a/b, or nil when the denominator is zero, near zero or
// non-finite, or when the quotient itself is non-finite.
func SafeDivide(a, b float64) *float64 {
	if !finite(a) || !finite(b) || math.Abs(b) < nearZero {
		return nil
	}
	q := a / b
	if !finite(q) {
		return nil
	}
	return &q
}

// ratio is SafeDivide in series form: NaN instead of nil
func ratio(a, b float64) float64 {
	if q := SafeDivide(a, b); q != nil {
		return *q
	}
	return math.NaN()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// value converts a series point to a nullable feature
func value(v float64) *float64 {
	if !finite(v) {
		return nil
	}
	return &v
}

// flag returns 1 or 0, or nil when the condition is undefined
func flag(defined, cond bool) *float64 {
	if !defined {
		return nil
	}
	v := 0.0
	if cond {
		v = 1
	}
	return &v
}
