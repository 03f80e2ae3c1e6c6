package smart

// AttrClass groups canonical attributes by what they say about drive health.
type AttrClass int

const (
	ClassInfo        AttrClass = iota // informational, no direct health weight
	ClassCritical                     // nonzero raw value indicates media trouble
	ClassTemperature                  // thermal reading
	ClassWear                         // SSD life consumption
)

// NVMe health-log fields get pseudo attribute IDs in a reserved range so the
// canonical ID space never collides with real ATA IDs (which stop at 255).
const (
	NVMeCriticalWarning  = 301
	NVMeTemperature      = 302
	NVMeAvailableSpare   = 303
	NVMeSpareThreshold   = 304
	NVMePercentageUsed   = 305
	NVMeDataUnitsRead    = 306
	NVMeDataUnitsWritten = 307
	NVMePowerOnHours     = 308
	NVMeUnsafeShutdowns  = 309
	NVMeMediaErrors      = 310
	NVMeErrLogEntries    = 311
	NVMePowerCycles      = 312
)

// SCSI log-page fields occupy a second reserved range above the NVMe block.
// The grown defect list is the SCSI analog of reallocated sectors.
const (
	SCSIGrownDefects      = 321
	SCSIReadUncorrected   = 322
	SCSIWriteUncorrected  = 323
	SCSIVerifyUncorrected = 324
	SCSIStartStopCount    = 325
)

// CanonicalAttr describes one entry of the unified attribute ID space.
type CanonicalAttr struct {
	ID    int
	Key   string // stable semantic key used by scoring and history
	Name  string // display name
	Class AttrClass
}

// canonicalTable is the single source of truth for attribute semantics.
// Adding vendor or schema coverage is a data edit here, not new code.
var canonicalTable = map[int]CanonicalAttr{
	// ATA
	1:   {1, "read_error_rate", "Raw Read Error Rate", ClassInfo},
	5:   {5, "reallocated_sector_count", "Reallocated Sectors Count", ClassCritical},
	9:   {9, "power_on_hours", "Power-On Hours", ClassInfo},
	10:  {10, "spin_retry_count", "Spin Retry Count", ClassCritical},
	12:  {12, "power_cycle_count", "Power Cycle Count", ClassInfo},
	177: {177, "wear_leveling_count", "Wear Leveling Count", ClassWear},
	184: {184, "end_to_end_error", "End-to-End Error Count", ClassCritical},
	187: {187, "uncorrectable_error_count", "Reported Uncorrectable Errors", ClassCritical},
	188: {188, "command_timeout", "Command Timeout", ClassCritical},
	190: {190, "airflow_temperature", "Airflow Temperature", ClassTemperature},
	194: {194, "temperature", "Temperature", ClassTemperature},
	196: {196, "reallocation_event_count", "Reallocation Event Count", ClassCritical},
	197: {197, "pending_sector_count", "Current Pending Sectors", ClassCritical},
	198: {198, "offline_uncorrectable", "Offline Uncorrectable Sectors", ClassCritical},
	199: {199, "crc_error_count", "UDMA CRC Error Count", ClassInfo},
	200: {200, "multi_zone_error_rate", "Multi-Zone Error Rate", ClassCritical},
	202: {202, "percent_lifetime_remain", "Percent Lifetime Remaining", ClassWear},
	230: {230, "media_wearout_indicator", "Media Wearout Indicator", ClassWear},
	231: {231, "ssd_life_left", "SSD Life Left", ClassWear},
	233: {233, "media_wearout_indicator", "Media Wearout Indicator", ClassWear},
	241: {241, "total_lbas_written", "Total LBAs Written", ClassInfo},
	242: {242, "total_lbas_read", "Total LBAs Read", ClassInfo},

	// NVMe health log (pseudo IDs)
	NVMeCriticalWarning:  {NVMeCriticalWarning, "critical_warning", "Critical Warning", ClassCritical},
	NVMeTemperature:      {NVMeTemperature, "temperature", "Temperature", ClassTemperature},
	NVMeAvailableSpare:   {NVMeAvailableSpare, "available_spare", "Available Spare", ClassWear},
	NVMeSpareThreshold:   {NVMeSpareThreshold, "available_spare_threshold", "Available Spare Threshold", ClassInfo},
	NVMePercentageUsed:   {NVMePercentageUsed, "percentage_used", "Percentage Used", ClassWear},
	NVMeDataUnitsRead:    {NVMeDataUnitsRead, "data_units_read", "Data Units Read", ClassInfo},
	NVMeDataUnitsWritten: {NVMeDataUnitsWritten, "data_units_written", "Data Units Written", ClassInfo},
	NVMePowerOnHours:     {NVMePowerOnHours, "power_on_hours", "Power On Hours", ClassInfo},
	NVMeUnsafeShutdowns:  {NVMeUnsafeShutdowns, "unsafe_shutdowns", "Unsafe Shutdowns", ClassInfo},
	NVMeMediaErrors:      {NVMeMediaErrors, "media_errors", "Media and Data Integrity Errors", ClassCritical},
	NVMeErrLogEntries:    {NVMeErrLogEntries, "error_log_entries", "Error Log Entries", ClassInfo},
	NVMePowerCycles:      {NVMePowerCycles, "power_cycles", "Power Cycles", ClassInfo},

	// SCSI log pages (pseudo IDs)
	SCSIGrownDefects:      {SCSIGrownDefects, "grown_defect_count", "Grown Defect List", ClassCritical},
	SCSIReadUncorrected:   {SCSIReadUncorrected, "read_uncorrected_errors", "Read Uncorrected Errors", ClassCritical},
	SCSIWriteUncorrected:  {SCSIWriteUncorrected, "write_uncorrected_errors", "Write Uncorrected Errors", ClassCritical},
	SCSIVerifyUncorrected: {SCSIVerifyUncorrected, "verify_uncorrected_errors", "Verify Uncorrected Errors", ClassCritical},
	SCSIStartStopCount:    {SCSIStartStopCount, "start_stop_cycles", "Start/Stop Cycles", ClassInfo},
}

// ataNameAliases maps vendor spellings of ATA attribute names to canonical
// IDs, for tables that report a known attribute under a nonstandard ID slot.
var ataNameAliases = map[string]int{
	"reallocated_sector_ct":   5,
	"reallocated_event_count": 196,
	"current_pending_sector":  197,
	"offline_uncorrectable":   198,
	"reported_uncorrect":      187,
	"temperature_celsius":     194,
	"airflow_temperature_cel": 190,
	"ssd_life_left":           231,
	"perc_rated_life_remain":  202,
	"remaining_lifetime_perc": 231,
}

// Lookup returns the canonical entry for an attribute ID.
func Lookup(id int) (CanonicalAttr, bool) {
	c, ok := canonicalTable[id]
	return c, ok
}

// canonicalID resolves a reported (id, name) pair to a canonical ID. Vendors
// occasionally park a well-known attribute in a nonstandard slot; when the
// reported name is a known alias, the name wins over the slot number.
func canonicalID(reported int, name string) int {
	if id, ok := ataNameAliases[normalizeAttrName(name)]; ok {
		return id
	}
	return reported
}

// IsCriticalClass reports whether the attribute ID belongs to the critical
// class, where any nonzero raw value signals media trouble.
func IsCriticalClass(id int) bool {
	c, ok := canonicalTable[id]
	return ok && c.Class == ClassCritical
}

// IsWearClass reports whether the attribute tracks SSD life consumption.
func IsWearClass(id int) bool {
	c, ok := canonicalTable[id]
	return ok && c.Class == ClassWear
}

// DisplayName returns the canonical display name for an ID, or the reported
// name when the table does not know the attribute.
func DisplayName(id int, reported string) string {
	if c, ok := canonicalTable[id]; ok {
		return c.Name
	}
	return reported
}
