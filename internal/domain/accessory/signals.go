package accessory

import (
	"math"
	"time"

	"rf-accessory-bridge/internal/domain/model"
)

// ClosestMatch returns the value nearest to v. On a tie the earlier value wins.
func ClosestMatch(values []int, v int) (int, bool) {
	if len(values) == 0 {
		return 0, false
	}
	best := values[0]
	for _, c := range values[1:] {
		if abs(c-v) < abs(best-v) {
			best = c
		}
	}
	return best, true
}

// StepIndex maps a 0..100 value onto one of steps+1 buckets. Values at or
// below zero are bucket 0.
func StepIndex(percent float64, steps int) int {
	if percent <= 0 {
		return 0
	}
	n := steps + 1
	r := 100 % n
	delta := float64(100-r) / float64(n)
	return int(math.Floor((percent - float64(r)) / delta))
}

// ColorTemperaturePercent rescales 140..500 mired onto 0..100.
func ColorTemperaturePercent(ct int) float64 {
	return float64(ct-model.MinColorTemperature) / float64(model.MaxColorTemperature-model.MinColorTemperature) * 100
}

// steppedPayload returns the repeat payload moving from one bucket to another,
// or a zero payload when both values share a bucket.
func steppedPayload(inc, dec model.Payload, steps int, from, to float64, interval time.Duration) (model.Payload, int, int) {
	current := StepIndex(from, steps)
	target := StepIndex(to, steps)
	if current == target {
		return model.Payload{}, current, target
	}
	p := inc
	if target < current {
		p = dec
	}
	return model.Repeat(signalData(p), interval, abs(target-current)), current, target
}

func signalData(p model.Payload) string {
	if p.IsRepeat() {
		return p.Steps[0].Data
	}
	return p.Data
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
