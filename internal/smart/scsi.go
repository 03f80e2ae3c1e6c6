package smart

import (
	"strconv"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

// hasSCSISections reports whether the payload carries SCSI log pages. SAS
// drives and HBA-attached enterprise disks report these instead of an ATA
// attribute table.
func (e *envelope) hasSCSISections() bool {
	return e.SCSIGrownDefectList != nil || e.SCSIErrorCounterLog != nil
}

// parseSCSISections converts the SCSI log pages into pseudo attribute
// records. SCSI has no per-attribute failing flag; the drive-level
// smart_status verdict carries the failure signal, so Critical stays unset.
func parseSCSISections(env *envelope) []model.AttributeRecord {
	var attrs []model.AttributeRecord

	add := func(id int, raw int64) {
		c := canonicalTable[id]
		attrs = append(attrs, model.AttributeRecord{
			ID:        id,
			Name:      c.Name,
			RawValue:  raw,
			RawString: strconv.FormatInt(raw, 10),
		})
	}

	if env.SCSIGrownDefectList != nil {
		add(SCSIGrownDefects, *env.SCSIGrownDefectList)
	}
	if log := env.SCSIErrorCounterLog; log != nil {
		if log.Read != nil {
			add(SCSIReadUncorrected, log.Read.TotalUncorrectedErrors)
		}
		if log.Write != nil {
			add(SCSIWriteUncorrected, log.Write.TotalUncorrectedErrors)
		}
		if log.Verify != nil {
			add(SCSIVerifyUncorrected, log.Verify.TotalUncorrectedErrors)
		}
	}
	if env.SCSIStartStopCycles != nil {
		add(SCSIStartStopCount, env.SCSIStartStopCycles.AccumulatedStartStopCycles)
	}

	return attrs
}
