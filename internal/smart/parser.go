// Package smart parses smartctl JSON payloads into normalized snapshots.
//
// Three schema families are recognized: the ATA attribute table (which also
// covers SAT/USB-bridge passthrough), the NVMe health information log, and
// the SCSI log pages SAS drives report. Family selection and attribute
// semantics are table-driven; vendor coverage grows by editing data, not
// control flow.
package smart

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

// ParseError reports a payload that could not be turned into a snapshot.
type ParseError struct {
	Device string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing smart data for %s: %s", e.Device, e.Reason)
}

// ParseSnapshot decodes one smartctl --json payload into a snapshot. The
// identity carries raw reported strings; key normalization and path merging
// happen in the identity resolver. The returned snapshot has no timestamp;
// the poll cycle stamps it.
func ParseSnapshot(dev string, raw []byte) (*model.SmartSnapshot, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ParseError{Device: dev, Reason: fmt.Sprintf("invalid json: %v", err)}
	}

	var attrs []model.AttributeRecord
	switch {
	case env.NVMeHealthLog != nil:
		attrs = parseNVMeLog(env.NVMeHealthLog)
	case env.ATAAttributes != nil:
		attrs = parseATATable(dev, env.ATAAttributes.Table)
		if len(attrs) == 0 {
			return nil, &ParseError{Device: dev, Reason: "no usable rows in attribute table"}
		}
	case env.hasSCSISections():
		attrs = parseSCSISections(&env)
		if len(attrs) == 0 {
			return nil, &ParseError{Device: dev, Reason: "no usable scsi log pages"}
		}
	default:
		return nil, &ParseError{Device: dev, Reason: "no recognized diagnostic section"}
	}

	snap := &model.SmartSnapshot{
		Identity: model.DriveIdentity{
			Serial:    strings.TrimSpace(env.SerialNumber),
			Model:     modelName(&env),
			Firmware:  strings.TrimSpace(env.FirmwareVersion),
			Interface: classifyInterface(env),
			Paths:     []string{dev},
		},
		Attributes:    attrs,
		CapacityBytes: env.UserCapacity.Bytes,
	}

	if env.SmartStatus != nil {
		passed := env.SmartStatus.Passed
		snap.HealthPassed = &passed
	}

	fillScalars(snap, &env)
	return snap, nil
}

// modelName prefers the envelope's model_name; SCSI payloads often report
// only vendor and product.
func modelName(env *envelope) string {
	if m := strings.TrimSpace(env.ModelName); m != "" {
		return m
	}
	return strings.TrimSpace(strings.TrimSpace(env.Vendor) + " " + strings.TrimSpace(env.Product))
}

// classifyInterface derives the interface from the payload's device type and
// protocol strings. USB bridges show up as SAT or vendor passthrough types
// while still speaking ATA; SCSI/SAS rides the sata bucket.
func classifyInterface(env envelope) model.Interface {
	devType := strings.ToLower(env.Device.Type)
	proto := strings.ToLower(env.Device.Protocol)

	switch {
	case proto == "nvme" || devType == "nvme" || env.NVMeHealthLog != nil:
		return model.InterfaceNVMe
	case devType == "sat" || strings.HasPrefix(devType, "usb"):
		return model.InterfaceUSB
	default:
		return model.InterfaceSATA
	}
}

// fillScalars populates temperature and power-on hours, preferring the
// envelope's dedicated sections over attribute table values.
func fillScalars(snap *model.SmartSnapshot, env *envelope) {
	if env.Temperature != nil && env.Temperature.Current > 0 {
		t := env.Temperature.Current
		snap.Temperature = &t
	}
	if env.PowerOnTime != nil && env.PowerOnTime.Hours > 0 {
		h := env.PowerOnTime.Hours
		snap.PowerOnHours = &h
	}

	if snap.Temperature == nil {
		for _, id := range []int{194, 190, NVMeTemperature} {
			if a := snap.Attribute(id); a != nil && a.RawValue > 0 {
				t := int(a.RawValue)
				snap.Temperature = &t
				break
			}
		}
	}
	if snap.PowerOnHours == nil {
		for _, id := range []int{9, NVMePowerOnHours} {
			if a := snap.Attribute(id); a != nil && a.RawValue > 0 {
				h := a.RawValue
				snap.PowerOnHours = &h
				break
			}
		}
	}
}
