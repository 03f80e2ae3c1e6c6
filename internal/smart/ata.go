package smart

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

// parseATATable converts ATA attribute table rows into normalized records.
// Malformed rows are skipped with a warning; the caller rejects the snapshot
// only when nothing survives.
func parseATATable(dev string, rows []ataRow) []model.AttributeRecord {
	attrs := make([]model.AttributeRecord, 0, len(rows))

	for i, row := range rows {
		if row.ID <= 0 {
			slog.Warn("skipping attribute row without id", "device", dev, "row", i)
			continue
		}

		id := canonicalID(row.ID, row.Name)
		rawStr, rawVal := normalizeRaw(row.Raw.Value, row.Raw.String)

		attrs = append(attrs, model.AttributeRecord{
			ID:        id,
			Name:      DisplayName(id, row.Name),
			Value:     row.Value,
			Worst:     row.Worst,
			Threshold: row.Thresh,
			RawValue:  rawVal,
			RawString: rawStr,
			Critical:  ataFailingNow(row),
		})
	}

	return attrs
}

// ataFailingNow reports the drive's own predictive-failure verdict for one
// attribute: an explicit when_failed marker, or a prefail attribute whose
// normalized value has reached its threshold.
func ataFailingNow(row ataRow) bool {
	if strings.EqualFold(strings.TrimSpace(row.WhenFailed), "now") {
		return true
	}
	return row.Flags.Prefailure && row.Thresh > 0 && row.Value <= row.Thresh
}

// normalizeRaw reconciles the two raw representations smartctl emits. The
// string form keeps vendor detail like "40 (Min/Max 25/55)"; the numeric form
// can pack extra fields into high bits, so when both are present and disagree
// the leading integer of the string wins.
func normalizeRaw(num json.Number, str string) (string, int64) {
	str = strings.TrimSpace(str)

	var numVal int64
	hasNum := false
	if n, err := num.Int64(); err == nil {
		numVal = n
		hasNum = true
	}

	if str == "" {
		if hasNum {
			return strconv.FormatInt(numVal, 10), numVal
		}
		return "0", 0
	}

	strVal := extractLeadingInt(str)
	if hasNum && numVal == strVal {
		return str, numVal
	}
	return str, strVal
}

// extractLeadingInt extracts the leading integer from a string like
// "40 (Min/Max 25/55)".
func extractLeadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9') {
		end++
	}
	if end == 0 {
		return 0
	}

	val, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return val
}

// normalizeAttrName lowercases a reported attribute name for alias lookup.
func normalizeAttrName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
