package hardware

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

// Switcher drives mode and channel changes through `ip` and `iw`. It
// implements ports.ModeSwitcher and is called only from the scheduler loop.
type Switcher struct {
	run runCmd
}

// NewSwitcher returns an ip/iw-backed mode switcher.
func NewSwitcher() *Switcher {
	return &Switcher{run: runCommand}
}

// SetMode performs the down / set type / up sequence. The interface is
// left down on failure so a half-switched adapter never carries traffic.
func (s *Switcher) SetMode(ctx context.Context, iface string, mode domain.InterfaceMode) error {
	iwType, err := iwType(mode)
	if err != nil {
		return err
	}

	if _, err := s.run(ctx, "ip", "link", "set", "dev", iface, "down"); err != nil {
		return fmt.Errorf("bringing %s down: %w", iface, err)
	}
	if _, err := s.run(ctx, "iw", "dev", iface, "set", "type", iwType); err != nil {
		return fmt.Errorf("setting %s type %s: %w", iface, iwType, err)
	}
	if _, err := s.run(ctx, "ip", "link", "set", "dev", iface, "up"); err != nil {
		return fmt.Errorf("bringing %s up: %w", iface, err)
	}
	return nil
}

// SetChannel tunes the adapter. Requires the interface to be up.
func (s *Switcher) SetChannel(ctx context.Context, iface string, channel int) error {
	if _, err := s.run(ctx, "iw", "dev", iface, "set", "channel", strconv.Itoa(channel)); err != nil {
		return fmt.Errorf("setting %s channel %d: %w", iface, channel, err)
	}
	return nil
}

// Probe is the cheap health check used to promote DEGRADED adapters.
func (s *Switcher) Probe(ctx context.Context, iface string) error {
	if _, err := s.run(ctx, "iw", "dev", iface, "info"); err != nil {
		return fmt.Errorf("probing %s: %w", iface, err)
	}
	return nil
}

func iwType(mode domain.InterfaceMode) (string, error) {
	switch mode {
	case domain.ModeManaged:
		return "managed", nil
	case domain.ModeMonitor:
		return "monitor", nil
	case domain.ModeAP:
		return "__ap", nil
	default:
		return "", fmt.Errorf("unsupported interface mode %q", mode)
	}
}
