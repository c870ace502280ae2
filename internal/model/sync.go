package model

import "time"

// Finding event types
const (
	FindingNew    = "NEW"
	FindingUpdate = "UPDATE"
	FindingDelete = "DELETE"
	FindingError  = "ERROR"
)

// Result types
const (
	ResultSuccess = "SUCCESS"
	ResultWarning = "WARNING"
	ResultError   = "ERROR"
)

// SyncFinding is a discrepancy between polled device data and the inventory
type SyncFinding struct {
	Type             string `json:"type" validate:"oneof=NEW UPDATE DELETE ERROR"`
	Description      string `json:"description"`
	ExtraInformation string `json:"extra_information,omitempty"`
}

// SyncResult is the outcome of acting on one finding
type SyncResult struct {
	Type              string `json:"type"`
	ActionDescription string `json:"action_description"`
	ActionResult      string `json:"action_result"`
}

// SyncRun records one synchronization of a device
type SyncRun struct {
	ID         string       `json:"id"`
	DeviceID   string       `json:"device_id"`
	Source     string       `json:"source"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Error      string       `json:"error,omitempty"`
	Successes  int          `json:"successes"`
	Warnings   int          `json:"warnings"`
	Errors     int          `json:"errors"`
	Results    []SyncResult `json:"results,omitempty"`
}

// Tally counts results by type into the run
func (r *SyncRun) Tally() {
	r.Successes, r.Warnings, r.Errors = 0, 0, 0
	for _, res := range r.Results {
		switch res.Type {
		case ResultSuccess:
			r.Successes++
		case ResultWarning:
			r.Warnings++
		case ResultError:
			r.Errors++
		}
	}
}
