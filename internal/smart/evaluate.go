package smart

import (
	"github.com/cshoesmith/diskmonitor/internal/model"
)

// Verdict buckets an attribute's statistical outlook.
type Verdict string

const (
	VerdictOK   Verdict = "ok"
	VerdictWarn Verdict = "warn"
	VerdictCrit Verdict = "crit"
)

// Assessment annotates one attribute with fleet-survey failure statistics.
// It is presentation data for drive detail views and never feeds the
// health score.
type Assessment struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	RawValue    int64    `json:"raw_value"`
	FailureRate *float64 `json:"failure_rate,omitempty"`
	Verdict     Verdict  `json:"verdict"`
}

// AssessAttribute maps one attribute record onto its failure-rate bucket.
// The second return is false when no statistical data covers the ID.
//
// Critical-class attributes fail at a 10% annualized rate; informational
// ones warn at 10% and fail at 20%. A failing-now flag from the device
// overrides the statistics outright.
func AssessAttribute(a model.AttributeRecord) (Assessment, bool) {
	thresh, ok := LookupThreshold(a.ID)
	if !ok {
		return Assessment{}, false
	}

	as := Assessment{
		ID:       a.ID,
		Name:     DisplayName(a.ID, a.Name),
		RawValue: a.RawValue,
		Verdict:  VerdictOK,
	}
	critical := IsCriticalClass(a.ID)

	if b := FindBucket(thresh, a.RawValue); b != nil {
		rate := b.AnnualFailureRate
		as.FailureRate = &rate
		switch {
		case critical && rate >= 0.10:
			as.Verdict = VerdictCrit
		case !critical && rate >= 0.20:
			as.Verdict = VerdictCrit
		case !critical && rate >= 0.10:
			as.Verdict = VerdictWarn
		}
	} else if critical {
		// Off the charted range for a critical counter.
		as.Verdict = VerdictWarn
	}

	if a.Critical {
		as.Verdict = VerdictCrit
	}

	return as, true
}

// Assess returns assessments for every attribute with statistical coverage,
// in input order. NVMe and SCSI pseudo attributes have no coverage and are
// skipped.
func Assess(attrs []model.AttributeRecord) []Assessment {
	var out []Assessment
	for _, a := range attrs {
		if as, ok := AssessAttribute(a); ok {
			out = append(out, as)
		}
	}
	return out
}
