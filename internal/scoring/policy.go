// Package scoring turns a snapshot's attribute set into a 0-100 health
// score and a tri-level status. The weighting lives in a policy table so
// tuning is a config edit, not a code change.
package scoring

import "github.com/cshoesmith/diskmonitor/internal/smart"

// AttributePolicy is one scoring rule: once the attribute's raw value is
// above zero, subtract Base plus PerUnit per raw unit, the latter capped at
// RawCap.
type AttributePolicy struct {
	ID      int     `yaml:"id"`
	Base    float64 `yaml:"base"`
	PerUnit float64 `yaml:"per_unit"`
	RawCap  float64 `yaml:"raw_cap"`
}

// Policy holds every tunable of the scorer.
type Policy struct {
	Attributes       []AttributePolicy `yaml:"attributes"`
	TempWarn         int               `yaml:"temp_warn"`          // °C, safe-band ceiling
	TempCrit         int               `yaml:"temp_crit"`          // °C, penalty doubles past this
	TempPerDegree    float64           `yaml:"temp_per_degree"`    // penalty per °C above TempWarn
	ServiceLifeHours int64             `yaml:"service_life_hours"` // power-on-hours reference
	WearMax          float64           `yaml:"wear_max"`           // cap for the service-life penalty
}

// DefaultPolicy returns the stock weighting. Reallocated sectors carry the
// heaviest flat penalty; pending and offline-uncorrectable sectors follow;
// reported uncorrectable errors scale linearly up to half the scale. NVMe
// percentage-used subtracts point for point; the SCSI grown defect list
// mirrors the reallocated-sector rule.
func DefaultPolicy() Policy {
	return Policy{
		Attributes: []AttributePolicy{
			{ID: 5, Base: 10, PerUnit: 1, RawCap: 40},
			{ID: 10, Base: 5, PerUnit: 2, RawCap: 20},
			{ID: 184, Base: 5, PerUnit: 1, RawCap: 20},
			{ID: 187, Base: 0, PerUnit: 1, RawCap: 50},
			{ID: 196, Base: 5, PerUnit: 1, RawCap: 15},
			{ID: 197, Base: 5, PerUnit: 1, RawCap: 20},
			{ID: 198, Base: 5, PerUnit: 1, RawCap: 20},
			{ID: 199, Base: 2, PerUnit: 0.5, RawCap: 10},
			{ID: 200, Base: 2, PerUnit: 1, RawCap: 15},
			{ID: smart.NVMePercentageUsed, Base: 0, PerUnit: 1, RawCap: 100},
			{ID: smart.NVMeMediaErrors, Base: 5, PerUnit: 1, RawCap: 25},
			{ID: smart.SCSIGrownDefects, Base: 10, PerUnit: 1, RawCap: 40},
			{ID: smart.SCSIReadUncorrected, Base: 5, PerUnit: 1, RawCap: 25},
			{ID: smart.SCSIWriteUncorrected, Base: 5, PerUnit: 1, RawCap: 25},
		},
		TempWarn:         50,
		TempCrit:         60,
		TempPerDegree:    1,
		ServiceLifeHours: 43800,
		WearMax:          15,
	}
}

// rules indexes a policy's attribute rows by canonical ID.
func (p Policy) rules() map[int]AttributePolicy {
	m := make(map[int]AttributePolicy, len(p.Attributes))
	for _, a := range p.Attributes {
		m[a.ID] = a
	}
	return m
}
