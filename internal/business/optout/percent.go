package optout

import "math"

// Percent returns the unrounded opt-out percentage. Milestone comparisons
// use this value; display sites round it. A zero or unknown denominator
// yields 0.
func Percent(count, households int) float64 {
	if households <= 0 {
		return 0
	}
	return float64(count) / float64(households) * 100
}

// RoundPercent rounds to one decimal place, half up on the value scaled by
// ten. Every read and write site uses this same rule.
func RoundPercent(p float64) float64 {
	return math.Floor(p*10+0.5) / 10
}

// DisplayPercent is the rounded percentage capped at 100. Estimates are
// approximate, so the raw ratio may exceed 100%; that is tolerated, not an
// error.
func DisplayPercent(count, households int) float64 {
	p := RoundPercent(Percent(count, households))
	if p > 100 {
		return 100
	}
	return p
}
