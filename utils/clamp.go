package utils

import "math"

// Clamp saturates v into [lo, hi]. Saturation is silent on purpose: every
// bounded parameter in the walking core goes through this one helper so the
// always-produce-a-safe-value policy stays auditable in a single place.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampSym saturates v into [-bound, bound].
func ClampSym(v, bound float64) float64 {
	return Clamp(v, -bound, bound)
}

// Quantize rounds v to the nearest integer multiple of step. Step must be
// positive; a non-positive step returns v unchanged.
func Quantize(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
