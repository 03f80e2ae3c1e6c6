package source

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
)

// Drive profiles cycled by the mock. Index i%3 selects the profile for mock
// drive i.
const (
	profileHealthySATA = iota
	profileDegradingSATA
	profileNVMeWear
)

type mockDrive struct {
	dev     Device
	serial  string
	model   string
	profile int
	rng     *rand.Rand
	calls   int
}

// MockSource generates deterministic smartctl-shaped payloads without
// touching hardware. Each drive's series depends only on the seed, the drive
// name, and how many times it has been queried, so runs are reproducible and
// independent of enumeration order. Drive 0 is a healthy SATA disk, drive 1
// a slowly degrading SATA disk, drive 2 an NVMe device consuming its rated
// life; further drives repeat the pattern.
type MockSource struct {
	mu     sync.Mutex
	drives []*mockDrive
}

// NewMock builds a mock source with count drives derived from seed.
func NewMock(seed int64, count int) *MockSource {
	if count <= 0 {
		count = 3
	}

	s := &MockSource{drives: make([]*mockDrive, 0, count)}
	for i := 0; i < count; i++ {
		path := fmt.Sprintf("/dev/mock%d", i)
		profile := i % 3

		d := &mockDrive{
			dev:     Device{Path: path},
			profile: profile,
			rng:     rand.New(rand.NewSource(seed ^ int64(hashName(path)))),
		}
		switch profile {
		case profileNVMeWear:
			d.dev.Type = "nvme"
			d.model = "Fabrikam NV800 1TB"
			d.serial = fmt.Sprintf("FNV8-%06d", 100000+i*7)
		case profileDegradingSATA:
			d.model = "Fabrikam Spinpoint 4TB"
			d.serial = fmt.Sprintf("FSP4-%06d", 200000+i*7)
		default:
			d.model = "Fabrikam Endurance 2TB"
			d.serial = fmt.Sprintf("FEN2-%06d", 300000+i*7)
		}
		s.drives = append(s.drives, d)
	}
	return s
}

func (s *MockSource) Kind() string { return "mock" }

// Enumerate returns the fixed mock drive list.
func (s *MockSource) Enumerate(_ context.Context) ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devs := make([]Device, len(s.drives))
	for i, d := range s.drives {
		devs[i] = d.dev
	}
	return devs, nil
}

// Snapshot produces the next payload in the drive's series.
func (s *MockSource) Snapshot(_ context.Context, dev Device) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.drives {
		if d.dev.Path == dev.Path {
			d.calls++
			return d.payload()
		}
	}
	return nil, fmt.Errorf("unknown mock device %s", dev.Path)
}

func (d *mockDrive) payload() ([]byte, error) {
	if d.profile == profileNVMeWear {
		return json.Marshal(d.nvmePayload())
	}
	return json.Marshal(d.ataPayload())
}

func (d *mockDrive) ataPayload() map[string]any {
	temp := 31 + d.rng.Intn(6)
	poh := int64(12000 + d.calls)

	var realloc, pending, uncorrect int64
	if d.profile == profileDegradingSATA {
		realloc = int64(4 + 2*d.calls)
		pending = int64(d.calls / 2)
		uncorrect = int64(d.calls / 3)
	}

	// Normalized health falls as the raw counter grows; worst tracks value
	// because the series only ever degrades.
	reallocValue := max(1, 100-realloc)

	passed := realloc < 60

	return map[string]any{
		"json_format_version": []int{1, 0},
		"smartctl":            map[string]any{"version": []int{7, 4}, "exit_status": 0},
		"device":              map[string]any{"name": d.dev.Path, "type": "ata", "protocol": "ATA"},
		"model_name":          d.model,
		"serial_number":       d.serial,
		"firmware_version":    "FB01",
		"user_capacity":       map[string]any{"bytes": int64(2000398934016)},
		"smart_status":        map[string]any{"passed": passed},
		"temperature":         map[string]any{"current": temp},
		"power_on_time":       map[string]any{"hours": poh},
		"ata_smart_attributes": map[string]any{
			"revision": 16,
			"table": []map[string]any{
				ataAttr(1, "Raw_Read_Error_Rate", 200, 51, 0, true),
				ataAttr(5, "Reallocated_Sector_Ct", reallocValue, 10, realloc, true),
				ataAttr(9, "Power_On_Hours", 80, 0, poh, false),
				ataAttr(187, "Reported_Uncorrect", max(1, 100-uncorrect), 0, uncorrect, false),
				ataAttr(194, "Temperature_Celsius", int64(100-temp), 0, int64(temp), false),
				ataAttr(197, "Current_Pending_Sector", max(1, 100-pending), 0, pending, false),
				ataAttr(198, "Offline_Uncorrectable", 100, 0, 0, false),
				ataAttr(199, "UDMA_CRC_Error_Count", 200, 0, 0, false),
			},
		},
	}
}

func (d *mockDrive) nvmePayload() map[string]any {
	temp := 36 + d.rng.Intn(5)
	poh := int64(4000 + d.calls)
	used := min(int64(100), int64(3+d.calls))
	spare := max(int64(1), 100-int64(d.calls/4))

	return map[string]any{
		"json_format_version": []int{1, 0},
		"smartctl":            map[string]any{"version": []int{7, 4}, "exit_status": 0},
		"device":              map[string]any{"name": d.dev.Path, "type": "nvme", "protocol": "NVMe"},
		"model_name":          d.model,
		"serial_number":       d.serial,
		"firmware_version":    "FB02",
		"user_capacity":       map[string]any{"bytes": int64(1000204886016)},
		"smart_status":        map[string]any{"passed": used < 100},
		"temperature":         map[string]any{"current": temp},
		"power_on_time":       map[string]any{"hours": poh},
		"nvme_smart_health_information_log": map[string]any{
			"critical_warning":          0,
			"temperature":               temp,
			"available_spare":           spare,
			"available_spare_threshold": 10,
			"percentage_used":           used,
			"data_units_read":           int64(30000000 + 1000*d.calls),
			"data_units_written":        int64(28000000 + 1500*d.calls),
			"power_cycles":              210,
			"power_on_hours":            poh,
			"unsafe_shutdowns":          12,
			"media_errors":              0,
			"num_err_log_entries":       int64(40 + d.calls/10),
		},
	}
}

func ataAttr(id int, name string, value, thresh, raw int64, prefail bool) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        name,
		"value":       value,
		"worst":       value,
		"thresh":      thresh,
		"when_failed": "",
		"flags":       map[string]any{"prefailure": prefail},
		"raw":         map[string]any{"value": raw, "string": fmt.Sprintf("%d", raw)},
	}
}

func hashName(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}
