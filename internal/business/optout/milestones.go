package optout

// MilestoneThresholds are the percentage levels that trigger follow-on
// actions for a route.
var MilestoneThresholds = []int{25, 50, 75, 90}

// CrossedMilestone reports the lowest threshold newly crossed between two
// unrounded percentages: prev strictly below, next at or above. A single
// registration advances the count by one and crosses at most one threshold,
// but all thresholds are checked so the logic stays correct for larger
// jumps (backfills).
func CrossedMilestone(prev, next float64) (int, bool) {
	for _, t := range MilestoneThresholds {
		if prev < float64(t) && next >= float64(t) {
			return t, true
		}
	}
	return 0, false
}
