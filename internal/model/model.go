// Package model defines all shared domain types for diskmonitor.
package model

import "time"

// Interface identifies the command protocol a drive is reached through.
// It selects which diagnostic schema family applies.
type Interface string

const (
	InterfaceSATA Interface = "sata"
	InterfaceNVMe Interface = "nvme"
	InterfaceUSB  Interface = "usb" // SATA behind a USB bridge (SAT passthrough)
)

// Status is the tri-level health classification.
type Status int

const (
	StatusUnknown Status = iota
	StatusGreen
	StatusOrange
	StatusRed
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusGreen:
		return "green"
	case StatusOrange:
		return "orange"
	case StatusRed:
		return "red"
	default:
		return "unknown"
	}
}

// MarshalText emits the status name, so JSON consumers see "green" rather
// than the internal ordering.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name. Unrecognized names map to Unknown.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "green":
		*s = StatusGreen
	case "orange":
		*s = StatusOrange
	case "red":
		*s = StatusRed
	default:
		*s = StatusUnknown
	}
	return nil
}

// Worse returns the more severe of two statuses. Unknown is the least severe;
// callers that need Unknown's Orange-capping behavior use MacroStatus.
func Worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// FailureKind records why a drive's last query attempt failed.
type FailureKind string

const (
	FailNone             FailureKind = ""
	FailToolUnavailable  FailureKind = "tool_unavailable"
	FailPermissionDenied FailureKind = "permission_denied"
	FailTimeout          FailureKind = "timeout"
	FailParse            FailureKind = "parse_error"
	FailQuery            FailureKind = "query_error" // unclassified command failure
)

// Trend classifies the direction of a drive's critical counters over the
// retained history window.
type Trend string

const (
	TrendUnknown   Trend = "unknown"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
	TrendImproving Trend = "improving"
)

// DriveIdentity is the canonical identity of one physical drive, independent
// of how many OS enumeration paths expose it.
type DriveIdentity struct {
	Key       string    `json:"key"` // normalized serial|model
	Serial    string    `json:"serial"`
	Model     string    `json:"model"`
	Firmware  string    `json:"firmware,omitempty"`
	Interface Interface `json:"interface"`
	Paths     []string  `json:"paths"` // enumeration paths observed for this drive
}

// AttributeRecord is one normalized diagnostic attribute.
//
// Critical is the vendor-reported predictive-failure indicator for this
// attribute (ATA when_failed, NVMe critical_warning), not the attribute's
// prefail classification; that lives in the canonicalization table.
type AttributeRecord struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Value     int64  `json:"value"` // vendor-normalized
	Worst     int64  `json:"worst"`
	Threshold int64  `json:"threshold"`
	RawValue  int64  `json:"raw_value"`
	RawString string `json:"raw_string"`
	Critical  bool   `json:"critical,omitempty"`
}

// SmartSnapshot is one drive's parsed diagnostic state for one poll cycle.
// Snapshots are immutable after construction; consumers receive copies.
type SmartSnapshot struct {
	Identity      DriveIdentity     `json:"identity"`
	Timestamp     int64             `json:"ts"` // cycle timestamp, unix seconds
	Attributes    []AttributeRecord `json:"attributes"`
	Temperature   *int              `json:"temperature,omitempty"` // °C
	PowerOnHours  *int64            `json:"power_on_hours,omitempty"`
	CapacityBytes int64             `json:"capacity_bytes,omitempty"`
	HealthPassed  *bool             `json:"health_passed,omitempty"` // drive's own SMART self-assessment
}

// Attribute returns the record with the given canonical ID, or nil.
func (s *SmartSnapshot) Attribute(id int) *AttributeRecord {
	for i := range s.Attributes {
		if s.Attributes[i].ID == id {
			return &s.Attributes[i]
		}
	}
	return nil
}

// Contribution explains one penalty applied while scoring a snapshot.
type Contribution struct {
	AttrID  int     `json:"attr_id"`
	Name    string  `json:"name"`
	Penalty float64 `json:"penalty"`
}

// HealthScore is the scored result for one snapshot.
type HealthScore struct {
	Score         int            `json:"score"` // clamped to [0,100]
	Status        Status         `json:"status"`
	Contributions []Contribution `json:"contributions,omitempty"`
}

// HistoryEntry retains the per-cycle values needed for trend math.
type HistoryEntry struct {
	Timestamp     int64   `json:"ts"`
	Score         int     `json:"score"`
	Status        Status  `json:"status"`
	Reallocated   int64   `json:"reallocated"`
	Pending       int64   `json:"pending"`
	Uncorrectable int64   `json:"uncorrectable"`
	ReadErrors    int64   `json:"read_errors"`
	PowerOnHours  int64   `json:"power_on_hours"`
	Temperature   int     `json:"temperature"`
	IOLoad        float64 `json:"io_load"`
}

// DriveState is the full tracked state of one physical drive.
//
// A state is created on first successful identity resolution and updated once
// per cycle. A failed query marks it Stale with the failure kind; a drive that
// dropped out of enumeration keeps its state with Present=false. States are
// never deleted while the monitor runs.
type DriveState struct {
	Identity            DriveIdentity  `json:"identity"`
	Snapshot            *SmartSnapshot `json:"snapshot,omitempty"` // latest successful
	Health              HealthScore    `json:"health"`
	Trend               Trend          `json:"trend"`
	History             []HistoryEntry `json:"history,omitempty"`
	Stale               bool           `json:"stale"`
	Failure             FailureKind    `json:"failure,omitempty"`
	ConsecutiveFailures int            `json:"consecutive_failures,omitempty"`
	Present             bool           `json:"present"` // seen in the latest enumeration
	FirstSeen           int64          `json:"first_seen"`
	LastSeen            int64          `json:"last_seen"` // last successful query
	IdentityConflicts   int            `json:"identity_conflicts,omitempty"`
}

// StatusSnapshot is the published unit handed to consumers after each cycle.
// Every drive in it shares one cycle timestamp.
type StatusSnapshot struct {
	CycleID   string       `json:"cycle_id"`
	Timestamp int64        `json:"ts"`
	Macro     Status       `json:"macro"`
	Drives    []DriveState `json:"drives"`
}

// MacroStatus folds per-drive statuses into the aggregate. Stale drives
// contribute Unknown, which raises the result to Orange at most; drives no
// longer present are skipped. With no present drives the macro is Unknown.
func MacroStatus(drives []DriveState) Status {
	macro := StatusUnknown
	for i := range drives {
		d := &drives[i]
		if !d.Present {
			continue
		}
		if d.Stale {
			macro = Worse(macro, StatusOrange)
			continue
		}
		macro = Worse(macro, d.Health.Status)
	}
	return macro
}

// Notification represents a structured alert message.
type Notification struct {
	AlertType string            `json:"alert_type"`
	Severity  string            `json:"severity"` // "info", "warning", "critical"
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	DriveKey  string            `json:"drive_key"`
	Subject   string            `json:"subject"`
	Timestamp time.Time         `json:"timestamp"`
	Resolved  bool              `json:"resolved"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
