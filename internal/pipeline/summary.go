package pipeline

import "time"

// ItemFailure records one item that did not complete.
type ItemFailure struct {
	SourceKey string
	Reason    string
}

// Summary is the outcome of a pipeline run.
type Summary struct {
	Discovered int
	Skipped    int
	Completed  int
	Failed     int
	Stopped    bool
	Started    time.Time
	Finished   time.Time
	Failures   []ItemFailure
}

// Duration is the wall-clock time the run took.
func (s *Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// Clean reports whether every discovered item completed.
func (s *Summary) Clean() bool {
	return s.Failed == 0 && !s.Stopped
}
