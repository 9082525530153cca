// Package progress defines the event stream emitted by the scan and
// publish pipelines.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageScanStart      Stage = "SCAN_START"
	StageScanDone       Stage = "SCAN_DONE"
	StageScanError      Stage = "SCAN_ERROR"
	StagePageFetched    Stage = "PAGE_FETCHED"
	StagePageFailed     Stage = "PAGE_FAILED"
	StageDraftGenerated Stage = "DRAFT_GENERATED"
	StageLinksPlaced    Stage = "LINKS_PLACED"
	StagePostPublished  Stage = "POST_PUBLISHED"
	StageCycleDone      Stage = "CYCLE_DONE"
	StageCycleError     Stage = "CYCLE_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for page fetches.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single pipeline milestone.
type Event struct {
	// ScanID identifies the owning scan; autopilot cycle events may leave
	// it empty.
	ScanID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// URL is the page or post URL involved, when there is one.
	URL string
	// Bytes carries the response size for page fetches.
	Bytes int64
	// Score is the page quality score for PAGE_FETCHED events.
	Score int
	// Links counts accepted placements for LINKS_PLACED events.
	Links int
	// StatusClass groups HTTP response codes (2xx, 4xx, etc).
	StatusClass StatusClass
	// Dur captures latency for fetches and whole scans.
	Dur time.Duration
	// Note carries low-volume context such as error text or post links.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCycleDone, StageCycleError:
	case StageScanStart, StageScanDone, StageScanError, StageDraftGenerated, StageLinksPlaced, StagePostPublished:
		if e.ScanID == "" {
			return errors.New("scan id is required")
		}
	case StagePageFetched:
		if e.ScanID == "" {
			return errors.New("scan id is required")
		}
		if e.URL == "" {
			return errors.New("page fetched requires url")
		}
		if e.StatusClass == "" {
			return errors.New("page fetched requires status class")
		}
	case StagePageFailed:
		if e.ScanID == "" {
			return errors.New("scan id is required")
		}
		if e.URL == "" {
			return errors.New("page failed requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
