// Package source discovers drives and fetches raw diagnostic payloads.
//
// The real implementation shells out to smartctl; a deterministic mock
// stands in on hosts without the tool or in development. Both hand back
// smartctl-shaped JSON so the parser path is identical either way.
package source

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Sentinel errors for query failures. Callers classify drive staleness by
// errors.Is against these.
var (
	ErrToolUnavailable  = errors.New("smart tool unavailable")
	ErrPermissionDenied = errors.New("permission denied querying device")
	ErrTimeout          = errors.New("device query timed out")
)

// Device is one enumerated drive path. Type carries the smartctl device-type
// hint from scan output (for example "sat" behind a USB bridge) and may be
// empty.
type Device struct {
	Path string `json:"path"`
	Type string `json:"type,omitempty"`
}

// Source enumerates drives and fetches one raw diagnostic payload per drive.
type Source interface {
	// Enumerate lists currently visible drives.
	Enumerate(ctx context.Context) ([]Device, error)
	// Snapshot fetches the raw smartctl JSON payload for one drive.
	Snapshot(ctx context.Context, dev Device) ([]byte, error)
	// Kind names the source implementation for logs and the API.
	Kind() string
}

// Probe checks once at startup whether smartctl is usable. The result is not
// re-evaluated per cycle; a host that loses the tool mid-run surfaces as
// per-device failures instead.
func Probe(ctx context.Context, binary string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%s not found in PATH: %w", binary, ErrToolUnavailable)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := exec.CommandContext(probeCtx, path, "--version").Run(); err != nil {
		return fmt.Errorf("running %s --version: %w", binary, err)
	}
	return nil
}
