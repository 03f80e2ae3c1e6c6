package model

import "slices"

// Clone returns a deep copy. Published snapshots cross goroutine boundaries,
// so consumers always get detached structures.
func (s StatusSnapshot) Clone() StatusSnapshot {
	cp := s
	cp.Drives = make([]DriveState, len(s.Drives))
	for i := range s.Drives {
		cp.Drives[i] = s.Drives[i].Clone()
	}
	return cp
}

// Clone returns a deep copy of the drive state.
func (d DriveState) Clone() DriveState {
	cp := d
	cp.Identity.Paths = slices.Clone(d.Identity.Paths)
	if d.Snapshot != nil {
		snap := d.Snapshot.Clone()
		cp.Snapshot = &snap
	}
	cp.History = slices.Clone(d.History)
	cp.Health.Contributions = slices.Clone(d.Health.Contributions)
	return cp
}

// Clone returns a deep copy of the snapshot.
func (s SmartSnapshot) Clone() SmartSnapshot {
	cp := s
	cp.Identity.Paths = slices.Clone(s.Identity.Paths)
	cp.Attributes = slices.Clone(s.Attributes)
	if s.Temperature != nil {
		t := *s.Temperature
		cp.Temperature = &t
	}
	if s.PowerOnHours != nil {
		h := *s.PowerOnHours
		cp.PowerOnHours = &h
	}
	if s.HealthPassed != nil {
		p := *s.HealthPassed
		cp.HealthPassed = &p
	}
	return cp
}
