package smart

import (
	"strconv"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

// nvmeField maps one health-log field to its pseudo attribute slot.
type nvmeField struct {
	ID    int
	Value func(*nvmeHealthLog) int64
}

// nvmeFields lists the health-log fields surfaced as attributes, in emission
// order. Adding a field is a data edit.
var nvmeFields = []nvmeField{
	{NVMeCriticalWarning, func(l *nvmeHealthLog) int64 { return l.CriticalWarning }},
	{NVMeTemperature, func(l *nvmeHealthLog) int64 { return l.Temperature }},
	{NVMeAvailableSpare, func(l *nvmeHealthLog) int64 { return l.AvailableSpare }},
	{NVMeSpareThreshold, func(l *nvmeHealthLog) int64 { return l.AvailableSpareThreshold }},
	{NVMePercentageUsed, func(l *nvmeHealthLog) int64 { return l.PercentageUsed }},
	{NVMeDataUnitsRead, func(l *nvmeHealthLog) int64 { return l.DataUnitsRead }},
	{NVMeDataUnitsWritten, func(l *nvmeHealthLog) int64 { return l.DataUnitsWritten }},
	{NVMePowerCycles, func(l *nvmeHealthLog) int64 { return l.PowerCycles }},
	{NVMePowerOnHours, func(l *nvmeHealthLog) int64 { return l.PowerOnHours }},
	{NVMeUnsafeShutdowns, func(l *nvmeHealthLog) int64 { return l.UnsafeShutdowns }},
	{NVMeMediaErrors, func(l *nvmeHealthLog) int64 { return l.MediaErrors }},
	{NVMeErrLogEntries, func(l *nvmeHealthLog) int64 { return l.NumErrLogEntries }},
}

// parseNVMeLog converts the NVMe health information log into pseudo attribute
// records. The critical_warning record carries the drive's failure verdict; a
// spare pool at or below its own threshold marks the spare record the same way.
func parseNVMeLog(log *nvmeHealthLog) []model.AttributeRecord {
	attrs := make([]model.AttributeRecord, 0, len(nvmeFields))

	for _, f := range nvmeFields {
		c := canonicalTable[f.ID]
		raw := f.Value(log)

		rec := model.AttributeRecord{
			ID:        f.ID,
			Name:      c.Name,
			RawValue:  raw,
			RawString: strconv.FormatInt(raw, 10),
		}

		switch f.ID {
		case NVMeCriticalWarning:
			rec.Critical = raw != 0
		case NVMeAvailableSpare:
			rec.Critical = raw <= log.AvailableSpareThreshold && log.AvailableSpareThreshold > 0
			rec.Value = raw
		case NVMePercentageUsed:
			rec.Value = raw
		}

		attrs = append(attrs, rec)
	}

	return attrs
}
