package models

import (
	"fmt"
	"strings"
)

// ValidationError reports a FilterConfig field that cannot be turned into a
// query. The caller can fix it and retry.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchFailure is a single page that could not be retrieved. Page is the
// zero-based page index; messages number pages from 1.
type FetchFailure struct {
	Page       int
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *FetchFailure) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("page %d: request timed out", e.Page+1)
	case e.StatusCode != 0:
		return fmt.Sprintf("page %d: upstream returned status %d", e.Page+1, e.StatusCode)
	default:
		return fmt.Sprintf("page %d: %v", e.Page+1, e.Err)
	}
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// PipelineStage names the state a search was in when it stopped.
type PipelineStage string

const (
	StageValidating PipelineStage = "validating"
	StageFetching   PipelineStage = "fetching"
	StageExtracting PipelineStage = "extracting"
	StageScoring    PipelineStage = "scoring"
	StageDone       PipelineStage = "done"
	StageFailed     PipelineStage = "failed"
)

// PipelineError is a terminal search failure. Warnings carries whatever
// per-page diagnostics were collected before the failure.
type PipelineError struct {
	Stage    PipelineStage
	Reason   string
	Warnings []string
	Err      error
}

func (e *PipelineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "search failed while %s: %s", e.Stage, e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PipelineError) Unwrap() error { return e.Err }
