package database

import "fmt"

// Status is the processing state of a record. Statuses only move forward:
// a record never regresses from a terminal success state.
type Status string

const (
	StatusNew            Status = "NEW"
	StatusDownloaded     Status = "DOWNLOADED"
	StatusAbstractOnly   Status = "ABSTRACT_ONLY"
	StatusDownloadFailed Status = "DOWNLOAD_FAILED"
	StatusAnalyzed       Status = "ANALYZED"
	StatusAnalysisFailed Status = "ANALYSIS_FAILED"
)

// transitions is the closed set of legal forward moves. A failed state may
// re-enter itself on a further failed attempt.
var transitions = map[Status][]Status{
	StatusNew:            {StatusDownloaded, StatusAbstractOnly, StatusDownloadFailed},
	StatusDownloadFailed: {StatusDownloaded, StatusAbstractOnly, StatusDownloadFailed},
	StatusDownloaded:     {StatusAnalyzed, StatusAnalysisFailed},
	StatusAbstractOnly:   {StatusAnalyzed, StatusAnalysisFailed},
	StatusAnalysisFailed: {StatusAnalyzed, StatusAnalysisFailed},
	StatusAnalyzed:       {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s is a terminal success state.
func (s Status) Terminal() bool {
	return s == StatusAnalyzed
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// checkTransition returns an error describing an illegal move.
func checkTransition(from, to Status) error {
	if !from.Valid() {
		return fmt.Errorf("unknown status %q", from)
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	return nil
}

// Content classifications for what was actually obtained.
const (
	KindFullText     = "full_text"
	KindAbstractOnly = "abstract_only"
	KindWebText      = "web_text"
	KindUnknown      = "unknown"
)
