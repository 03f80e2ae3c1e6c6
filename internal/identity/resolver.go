// Package identity maps parsed snapshots onto canonical physical drives.
//
// The same disk can surface under several enumeration paths (a SATA drive
// and its USB dock, device-node renumbering across boots). The resolver
// keys every observation by normalized serial and model so one physical
// drive is tracked exactly once, whatever path reported it.
package identity

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

// busPrefixes are transport decorations some bridges prepend to the serial
// or model string they report.
var busPrefixes = []string{"ATA_", "ATA ", "USB_", "USB ", "0X"}

// Normalize strips bus prefixes and everything but alphanumerics from an
// identity fragment and uppercases the rest, so vendor formatting quirks do
// not split one drive into several.
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, p := range busPrefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Key builds the canonical drive key from reported serial and model.
func Key(serial, model string) string {
	return Normalize(serial) + "|" + Normalize(model)
}

// Resolution reports how one observation mapped onto the registry.
type Resolution struct {
	Key      string
	New      bool // first observation of this physical drive
	Conflict bool // path previously belonged to a different drive
}

// Resolver tracks path-to-drive assignments across cycles. It is not safe
// for concurrent use: the poll cycle's aggregation step is the sole caller.
type Resolver struct {
	byKey  map[string]*model.DriveIdentity
	byPath map[string]string
}

func NewResolver() *Resolver {
	return &Resolver{
		byKey:  make(map[string]*model.DriveIdentity),
		byPath: make(map[string]string),
	}
}

// Resolve folds one parsed snapshot into the registry and rewrites the
// snapshot's identity to the canonical merged form. A path that changes
// owners between cycles is a conflict: it is logged and the newer, more
// completely populated observation wins, but nothing is deleted.
func (r *Resolver) Resolve(snap *model.SmartSnapshot) Resolution {
	key := Key(snap.Identity.Serial, snap.Identity.Model)

	var path string
	if len(snap.Identity.Paths) > 0 {
		path = snap.Identity.Paths[0]
	}
	// A bridge that reports neither serial nor model still deserves
	// tracking; the path is the only identity left.
	if key == "|" && path != "" {
		key = "path:" + path
	}

	res := Resolution{Key: key}

	if prev, ok := r.byPath[path]; ok && prev != key {
		slog.Warn("identity conflict: path changed owners",
			"path", path, "previous_key", prev, "new_key", key)
		res.Conflict = true
	}
	if path != "" {
		r.byPath[path] = key
	}

	known, ok := r.byKey[key]
	if !ok {
		res.New = true
		known = &model.DriveIdentity{Key: key}
		r.byKey[key] = known
	}
	mergeIdentity(known, &snap.Identity, path)

	merged := *known
	merged.Paths = slices.Clone(known.Paths)
	snap.Identity = merged
	return res
}

// Seed preloads the registry from a persisted identity at startup, so path
// ownership survives restarts and a path that changed drives across a
// reboot still surfaces as a conflict.
func (r *Resolver) Seed(id model.DriveIdentity) {
	if id.Key == "" {
		return
	}
	cp := id
	cp.Paths = slices.Clone(id.Paths)
	r.byKey[id.Key] = &cp
	for _, p := range cp.Paths {
		r.byPath[p] = id.Key
	}
}

// Lookup returns the canonical identity for a key.
func (r *Resolver) Lookup(key string) (model.DriveIdentity, bool) {
	known, ok := r.byKey[key]
	if !ok {
		return model.DriveIdentity{}, false
	}
	id := *known
	id.Paths = slices.Clone(known.Paths)
	return id, true
}

// KeyForPath returns the drive key last seen at an enumeration path.
func (r *Resolver) KeyForPath(path string) (string, bool) {
	key, ok := r.byPath[path]
	return key, ok
}

// mergeIdentity folds a fresh observation into the stored identity. Fresh
// non-empty fields supersede stored ones; the path set only grows.
func mergeIdentity(dst *model.DriveIdentity, src *model.DriveIdentity, path string) {
	if src.Serial != "" {
		dst.Serial = src.Serial
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Firmware != "" {
		dst.Firmware = src.Firmware
	}
	if src.Interface != "" {
		dst.Interface = src.Interface
	}
	if path != "" && !slices.Contains(dst.Paths, path) {
		dst.Paths = append(dst.Paths, path)
	}
}
