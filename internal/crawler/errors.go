package crawler

import (
	"errors"
	"fmt"
)

// Stage names the step of processing a target that failed.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StagePersist Stage = "persist"
)

// StageError is a failure to process one target. It is counted and
// logged; the crawl continues with the next target.
type StageError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrStopped is the abort reason when Stop is called.
var ErrStopped = errors.New("crawl stopped")
