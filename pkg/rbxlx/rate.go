package rbxlx

import "time"

type rateSample struct {
	moment time.Time
	count  int
}

// RateTracker calculates how many scripts are finished per second
type RateTracker struct {
	samples []rateSample
}

const maxRateSamples = 10

// NewRateTracker creates a new RateTracker instance
func NewRateTracker() *RateTracker {
	return &RateTracker{
		samples: make([]rateSample, 0),
	}
}

// Track records that the passed amount of scripts have been finished
func (rt *RateTracker) Track(count int) {
	rt.samples = append(rt.samples, rateSample{
		moment: time.Now(),
		count:  count,
	})

	l := len(rt.samples)
	if l > maxRateSamples {
		rt.samples = rt.samples[l-maxRateSamples:]
	}
}

// GetRate calculates the current rate based on the samples taken through Track()
func (rt *RateTracker) GetRate() float64 {
	if len(rt.samples) < 2 {
		return 0
	}

	count := 0
	for _, sample := range rt.samples[1:] {
		count += sample.count
	}

	start := rt.samples[0].moment
	end := rt.samples[len(rt.samples)-1].moment

	return float64(count) / end.Sub(start).Seconds()
}
