package pipeline

import "time"

// Clock abstracts time so the retry backoff and the timeout supervisor can
// be driven by a fake in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall-clock implementation used outside tests.
var SystemClock Clock = systemClock{}
