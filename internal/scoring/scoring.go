package scoring

import (
	"math"

	"github.com/cshoesmith/diskmonitor/internal/model"
	"github.com/cshoesmith/diskmonitor/internal/smart"
)

// Thresholds for the tri-level status.
const (
	greenFloor  = 80
	orangeFloor = 50
)

// Threshold-proximity penalty shape: zero with 30 or more points of
// normalized headroom above the vendor threshold, quadratic up to 25 as the
// headroom closes.
const (
	proximityBand = 30
	proximityMax  = 25.0
)

// Scorer computes health scores under one policy.
type Scorer struct {
	policy Policy
	rules  map[int]AttributePolicy
}

func NewScorer(p Policy) *Scorer {
	return &Scorer{policy: p, rules: p.rules()}
}

// Score derives the health score for one snapshot. The numeric score is the
// clamped sum of penalties; the status follows the score except that any
// vendor predictive-failure signal forces Red outright.
func (s *Scorer) Score(snap *model.SmartSnapshot) model.HealthScore {
	score := 100.0
	var contribs []model.Contribution
	forced := snap.HealthPassed != nil && !*snap.HealthPassed

	sub := func(id int, name string, penalty float64) {
		if penalty <= 0 {
			return
		}
		score -= penalty
		contribs = append(contribs, model.Contribution{AttrID: id, Name: name, Penalty: penalty})
	}

	for i := range snap.Attributes {
		a := &snap.Attributes[i]
		if a.Critical {
			forced = true
		}

		if rule, ok := s.rules[a.ID]; ok && a.RawValue > 0 {
			sub(a.ID, a.Name, rule.Base+min(rule.PerUnit*float64(a.RawValue), rule.RawCap))
		}

		sub(a.ID, a.Name, proximityPenalty(a))
	}

	if snap.Temperature != nil {
		sub(tempAttrID(snap), "temperature", s.tempPenalty(*snap.Temperature))
	}
	if snap.PowerOnHours != nil {
		sub(pohAttrID(snap), "service_life", s.wearPenalty(*snap.PowerOnHours))
	}

	clamped := int(math.Round(max(0, min(100, score))))

	status := statusFor(clamped)
	if forced {
		status = model.StatusRed
	}

	return model.HealthScore{Score: clamped, Status: status, Contributions: contribs}
}

// proximityPenalty grows quadratically as a thresholded attribute's
// normalized value sinks toward its vendor failure threshold. Attributes at
// or below threshold are already flagged Critical by the parser; this term
// covers the approach.
func proximityPenalty(a *model.AttributeRecord) float64 {
	if a.Threshold <= 0 || a.Value <= 0 {
		return 0
	}
	headroom := float64(a.Value - a.Threshold)
	if headroom >= proximityBand || headroom < 0 {
		return 0
	}
	frac := 1 - headroom/proximityBand
	return proximityMax * frac * frac
}

// tempPenalty is linear above the safe band and doubles past the critical
// line.
func (s *Scorer) tempPenalty(temp int) float64 {
	if s.policy.TempPerDegree <= 0 || temp <= s.policy.TempWarn {
		return 0
	}
	p := float64(temp-s.policy.TempWarn) * s.policy.TempPerDegree
	if temp > s.policy.TempCrit {
		p += float64(temp-s.policy.TempCrit) * s.policy.TempPerDegree
	}
	return p
}

// wearPenalty charges quadratically against the service-life reference so
// young drives pay nothing noticeable and old ones approach the cap.
func (s *Scorer) wearPenalty(hours int64) float64 {
	if s.policy.ServiceLifeHours <= 0 || hours <= 0 {
		return 0
	}
	ratio := float64(hours) / float64(s.policy.ServiceLifeHours)
	return min(s.policy.WearMax, s.policy.WearMax*ratio*ratio)
}

func statusFor(score int) model.Status {
	switch {
	case score >= greenFloor:
		return model.StatusGreen
	case score >= orangeFloor:
		return model.StatusOrange
	default:
		return model.StatusRed
	}
}

// tempAttrID picks the attribute ID to hang the temperature contribution on.
func tempAttrID(snap *model.SmartSnapshot) int {
	for _, id := range []int{194, 190, smart.NVMeTemperature} {
		if snap.Attribute(id) != nil {
			return id
		}
	}
	return 0
}

func pohAttrID(snap *model.SmartSnapshot) int {
	for _, id := range []int{9, smart.NVMePowerOnHours} {
		if snap.Attribute(id) != nil {
			return id
		}
	}
	return 0
}
