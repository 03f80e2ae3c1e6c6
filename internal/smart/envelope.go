package smart

import "encoding/json"

// envelope mirrors the subset of the smartctl --json payload the parser
// consumes. Unknown fields are ignored by encoding/json.
type envelope struct {
	Smartctl struct {
		ExitStatus int `json:"exit_status"`
		Messages   []struct {
			String   string `json:"string"`
			Severity string `json:"severity"`
		} `json:"messages"`
	} `json:"smartctl"`
	Device struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Protocol string `json:"protocol"`
	} `json:"device"`
	ModelName       string `json:"model_name"`
	ModelFamily     string `json:"model_family"`
	Vendor          string `json:"vendor"`
	Product         string `json:"product"`
	SerialNumber    string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version"`
	UserCapacity    struct {
		Bytes int64 `json:"bytes"`
	} `json:"user_capacity"`
	RotationRate *int `json:"rotation_rate"`
	SmartStatus  *struct {
		Passed bool `json:"passed"`
	} `json:"smart_status"`
	Temperature *struct {
		Current int `json:"current"`
	} `json:"temperature"`
	PowerOnTime *struct {
		Hours int64 `json:"hours"`
	} `json:"power_on_time"`
	ATAAttributes *struct {
		Table []ataRow `json:"table"`
	} `json:"ata_smart_attributes"`
	NVMeHealthLog       *nvmeHealthLog       `json:"nvme_smart_health_information_log"`
	SCSIGrownDefectList *int64               `json:"scsi_grown_defect_list"`
	SCSIErrorCounterLog *scsiErrorCounterLog `json:"scsi_error_counter_log"`
	SCSIStartStopCycles *struct {
		AccumulatedStartStopCycles int64 `json:"accumulated_start_stop_cycles"`
	} `json:"scsi_start_stop_cycle_counter"`
}

// ataRow is one row of the ATA attribute table. The raw field varies across
// vendors (number, string with trailing detail, or absent), so it is decoded
// loosely and normalized later.
type ataRow struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Value  int64  `json:"value"`
	Worst  int64  `json:"worst"`
	Thresh int64  `json:"thresh"`
	Flags  struct {
		Prefailure bool `json:"prefailure"`
	} `json:"flags"`
	WhenFailed string `json:"when_failed"`
	Raw        struct {
		Value  json.Number `json:"value"`
		String string      `json:"string"`
	} `json:"raw"`
}

// scsiErrorCounter is one direction (read/write/verify) of the SCSI error
// counter log page.
type scsiErrorCounter struct {
	TotalErrorsCorrected   int64 `json:"total_errors_corrected"`
	TotalUncorrectedErrors int64 `json:"total_uncorrected_errors"`
}

// scsiErrorCounterLog is log page 0x03/0x02/0x05 as smartctl reports it.
type scsiErrorCounterLog struct {
	Read   *scsiErrorCounter `json:"read"`
	Write  *scsiErrorCounter `json:"write"`
	Verify *scsiErrorCounter `json:"verify"`
}

// nvmeHealthLog is the NVMe SMART health information log page.
type nvmeHealthLog struct {
	CriticalWarning         int64 `json:"critical_warning"`
	Temperature             int64 `json:"temperature"`
	AvailableSpare          int64 `json:"available_spare"`
	AvailableSpareThreshold int64 `json:"available_spare_threshold"`
	PercentageUsed          int64 `json:"percentage_used"`
	DataUnitsRead           int64 `json:"data_units_read"`
	DataUnitsWritten        int64 `json:"data_units_written"`
	PowerCycles             int64 `json:"power_cycles"`
	PowerOnHours            int64 `json:"power_on_hours"`
	UnsafeShutdowns         int64 `json:"unsafe_shutdowns"`
	MediaErrors             int64 `json:"media_errors"`
	NumErrLogEntries        int64 `json:"num_err_log_entries"`
}
