package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

const captureBinary = "hcxdumptool"

// Capture shells out to hcxdumptool for the PMKID and deauth/handshake
// phases. It implements ports.CaptureExecutor.
type Capture struct {
	binary string
	outDir string
}

// NewCapture writes capture artifacts under outDir.
func NewCapture(outDir string) *Capture {
	return &Capture{binary: captureBinary, outDir: outDir}
}

// Capture runs the external tool against one target under a hard timeout.
// The process is killed when the timeout elapses and the phase reported as
// timed out; a capture cut short never lingers unattended.
func (c *Capture) Capture(ctx context.Context, lease *domain.Lease, phase domain.AttackPhase, target domain.Target, timeout time.Duration) (domain.Artifact, error) {
	bin, err := exec.LookPath(c.binary)
	if err != nil {
		return domain.Artifact{}, &domain.ExecutorUnavailableError{Phase: phase, Binary: c.binary}
	}
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return domain.Artifact{}, fmt.Errorf("creating capture dir: %w", err)
	}

	out := filepath.Join(c.outDir, fmt.Sprintf("%s_%s_%d.pcapng",
		sanitizeBSSID(target.BSSID), phase, time.Now().Unix()))

	args := []string{
		"-i", lease.Interface,
		"-w", out,
		"-c", strconv.Itoa(lease.Channel) + "a",
		"--filterlist_ap=" + target.BSSID,
		"--filtermode=2",
	}
	if phase == domain.PhasePMKID {
		// Clientless capture: no deauthentication frames.
		args = append(args, "--attemptapmax=4", "--disable_deauthentication")
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, args...)
	log.Printf("[EXEC] %s phase %s on %s (channel %d)", c.binary, phase, target.BSSID, lease.Channel)

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			// A timed-out run may still have produced usable material.
			if artifactOK(out) {
				return artifact(out, phase, target), nil
			}
			return domain.Artifact{}, &domain.ExecutorTimeoutError{Phase: phase, Timeout: timeout}
		}
		if ctx.Err() != nil {
			return domain.Artifact{}, ctx.Err()
		}
		return domain.Artifact{}, fmt.Errorf("%s: %w", c.binary, err)
	}

	if !artifactOK(out) {
		return domain.Artifact{}, fmt.Errorf("%s produced no capture for %s", c.binary, target.BSSID)
	}
	return artifact(out, phase, target), nil
}

func artifact(path string, phase domain.AttackPhase, target domain.Target) domain.Artifact {
	return domain.Artifact{Path: path, Kind: phase, TargetID: target.BSSID}
}

// artifactOK rejects empty output files so a failed run never counts as a
// capture.
func artifactOK(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func sanitizeBSSID(bssid string) string {
	out := make([]rune, 0, len(bssid))
	for _, r := range bssid {
		if r == ':' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
