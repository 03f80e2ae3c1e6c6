package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// SmartctlSource queries drives through the smartctl binary.
type SmartctlSource struct {
	binary string
}

// NewSmartctl returns a source backed by the given smartctl binary name or
// path.
func NewSmartctl(binary string) *SmartctlSource {
	if binary == "" {
		binary = "smartctl"
	}
	return &SmartctlSource{binary: binary}
}

func (s *SmartctlSource) Kind() string { return "smartctl" }

// scanResult is the JSON shape of smartctl --scan-open output.
type scanResult struct {
	Devices []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"devices"`
}

// Enumerate lists drives via --scan-open, which verifies each device can
// actually be opened. Some bridges misbehave under scan-open, so plain
// --scan is the fallback.
func (s *SmartctlSource) Enumerate(ctx context.Context) ([]Device, error) {
	out, err := s.run(ctx, "--scan-open", "--json")
	if err != nil {
		slog.Debug("scan-open failed, falling back to scan", "error", err)
		out, err = s.run(ctx, "--scan", "--json")
		if err != nil {
			return nil, fmt.Errorf("scanning for devices: %w", err)
		}
	}

	var res scanResult
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("decoding scan output: %w", err)
	}

	devs := make([]Device, 0, len(res.Devices))
	for _, d := range res.Devices {
		if d.Name == "" {
			continue
		}
		devs = append(devs, Device{Path: d.Name, Type: d.Type})
	}
	return devs, nil
}

// Snapshot fetches the full attribute payload for one drive. smartctl sets
// informational exit bits for failing drives, so a non-zero exit with a
// parseable JSON body is still a success.
func (s *SmartctlSource) Snapshot(ctx context.Context, dev Device) ([]byte, error) {
	args := []string{"-a", dev.Path, "--json"}
	if dev.Type != "" {
		args = append(args, "-d", dev.Type)
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := stdout.Bytes()

	if err != nil {
		if !json.Valid(out) || len(bytes.TrimSpace(out)) == 0 {
			return nil, s.classify(ctx, dev, err, stderr.String())
		}
		// smartctl emits valid JSON even when the device never opened; the
		// failure then lives in the messages array, not on stderr.
		if msg := openFailureMessage(out); msg != "" {
			return nil, s.classify(ctx, dev, err, msg)
		}
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, fmt.Errorf("empty output from %s for %s", s.binary, dev.Path)
	}
	return out, nil
}

// openFailureMessage returns the first error-severity message from a smartctl
// JSON payload, or "" when the payload reports none.
func openFailureMessage(out []byte) string {
	var env struct {
		Smartctl struct {
			Messages []struct {
				String   string `json:"string"`
				Severity string `json:"severity"`
			} `json:"messages"`
		} `json:"smartctl"`
	}
	if err := json.Unmarshal(out, &env); err != nil {
		return ""
	}
	for _, m := range env.Smartctl.Messages {
		if m.Severity == "error" {
			return m.String
		}
	}
	return ""
}

// classify maps an execution failure onto the sentinel error kinds.
func (s *SmartctlSource) classify(ctx context.Context, dev Device, err error, stderr string) error {
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return fmt.Errorf("querying %s: %w", dev.Path, ErrTimeout)
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("querying %s: %w", dev.Path, ErrToolUnavailable)
	case errors.Is(err, os.ErrPermission) || strings.Contains(stderr, "Permission denied"):
		return fmt.Errorf("querying %s: %w", dev.Path, ErrPermissionDenied)
	default:
		return fmt.Errorf("querying %s: %w (stderr: %s)", dev.Path, err, strings.TrimSpace(stderr))
	}
}

// run executes the binary with the given args and returns stdout.
func (s *SmartctlSource) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
