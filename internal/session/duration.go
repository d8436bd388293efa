package session

// manualInteractionOverhead is the fixed per-job allowance, in seconds, for
// operator reaction time on manual jobs.
const manualInteractionOverhead = 30.0

// EstimatedDuration sums the per-job duration estimates over the run list,
// split into automated and manual buckets. Manual jobs always contribute the
// interaction overhead even without a declared estimate. A bucket is nil
// ("unknown") if any contributing job lacks an estimate that cannot be
// inferred from its plugin kind.
func (s *State) EstimatedDuration() (automated, manual *float64) {
	var autoTotal, manualTotal float64
	autoKnown := true

	for _, j := range s.runList {
		if j.Plugin.Manual() {
			manualTotal += j.EstimatedDuration + manualInteractionOverhead
			continue
		}
		if j.EstimatedDuration == 0 {
			autoKnown = false
			continue
		}
		autoTotal += j.EstimatedDuration
	}

	if autoKnown {
		automated = &autoTotal
	}
	manual = &manualTotal
	return automated, manual
}
