package hardware

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

type runCmd func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Probe queries wireless adapters through `iw`. It implements ports.Probe.
type Probe struct {
	run runCmd
}

// NewProbe returns an iw-backed hardware probe.
func NewProbe() *Probe {
	return &Probe{run: runCommand}
}

// List enumerates wireless adapters with their capability records.
func (p *Probe) List(ctx context.Context) ([]domain.RadioInterface, error) {
	out, err := p.run(ctx, "iw", "dev")
	if err != nil {
		return nil, fmt.Errorf("enumerating interfaces: %w", err)
	}

	ifaces := parseIwDev(out)
	for i := range ifaces {
		caps, err := p.phyCapabilities(ctx, ifaces[i].Phy)
		if err != nil {
			// An unqueryable phy yields an interface of unknown
			// capabilities; the scheduler will simply never match it.
			continue
		}
		ifaces[i].Capabilities = caps
	}
	return ifaces, nil
}

// Describe queries a single adapter by name.
func (p *Probe) Describe(ctx context.Context, name string) (*domain.RadioInterface, error) {
	ifaces, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		if ifaces[i].Name == name {
			return &ifaces[i], nil
		}
	}
	return nil, fmt.Errorf("interface %s not found", name)
}

func (p *Probe) phyCapabilities(ctx context.Context, phy string) (domain.InterfaceCapabilities, error) {
	out, err := p.run(ctx, "iw", "phy", phy, "info")
	if err != nil {
		return domain.InterfaceCapabilities{}, err
	}
	return parsePhyInfo(out), nil
}

// parseIwDev extracts interface records from `iw dev` output:
//
//	phy#0
//		Interface wlan0
//			addr aa:bb:cc:dd:ee:ff
//			type managed
//			channel 6 (2437 MHz) ...
func parseIwDev(out []byte) []domain.RadioInterface {
	var ifaces []domain.RadioInterface
	var current *domain.RadioInterface
	phy := ""

	reChannel := regexp.MustCompile(`channel ([0-9]+)`)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "phy#"):
			phy = strings.Replace(line, "#", "", 1)
		case strings.HasPrefix(line, "Interface "):
			if current != nil {
				ifaces = append(ifaces, *current)
			}
			current = &domain.RadioInterface{
				Name:   strings.TrimPrefix(line, "Interface "),
				Phy:    phy,
				Mode:   domain.ModeUnknown,
				Status: domain.InterfaceFree,
			}
		case current != nil && strings.HasPrefix(line, "addr "):
			current.MAC = strings.TrimPrefix(line, "addr ")
		case current != nil && strings.HasPrefix(line, "type "):
			current.Mode = parseMode(strings.TrimPrefix(line, "type "))
		case current != nil && strings.HasPrefix(line, "channel "):
			if m := reChannel.FindStringSubmatch(line); len(m) > 1 {
				current.Channel, _ = strconv.Atoi(m[1])
			}
		}
	}
	if current != nil {
		ifaces = append(ifaces, *current)
	}
	return ifaces
}

func parseMode(s string) domain.InterfaceMode {
	switch s {
	case "managed", "station":
		return domain.ModeManaged
	case "monitor":
		return domain.ModeMonitor
	case "AP", "__ap":
		return domain.ModeAP
	default:
		return domain.ModeUnknown
	}
}

// parsePhyInfo extracts the capability record from `iw phy phyN info`.
// Frequency lines look like:
//
//   - 2412 MHz [1] (20.0 dBm)
//   - 5260 MHz [52] (20.0 dBm) (radar detection)
//   - 5180 MHz [36] (22.0 dBm) (disabled)
func parsePhyInfo(out []byte) domain.InterfaceCapabilities {
	caps := domain.InterfaceCapabilities{}
	bands := map[domain.WiFiBand]bool{}

	reChannel := regexp.MustCompile(`\[([0-9]+)\]`)
	inFrequencies := false
	inModes := false
	radarUsable := false

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "Frequencies:":
			inFrequencies = true
			inModes = false
			continue
		case line == "Supported interface modes:":
			inModes = true
			inFrequencies = false
			continue
		case strings.HasSuffix(line, ":") && !strings.HasPrefix(line, "*"):
			// Any other section header ends the current block.
			inFrequencies = false
			inModes = false
			continue
		}

		if inModes && strings.HasPrefix(line, "*") {
			switch strings.TrimSpace(strings.TrimPrefix(line, "*")) {
			case "monitor":
				caps.SupportsMonitor = true
				// Monitor-capable drivers exposed by iw accept raw
				// injection; there is no separate capability flag.
				caps.SupportsInjection = true
			case "AP":
				caps.SupportsAP = true
			}
			continue
		}

		if inFrequencies && strings.HasPrefix(line, "*") {
			if strings.Contains(line, "(disabled)") {
				continue
			}
			m := reChannel.FindStringSubmatch(line)
			if len(m) < 2 {
				continue
			}
			ch, _ := strconv.Atoi(m[1])
			if ch >= 1 && ch <= 14 {
				caps.Channels24 = append(caps.Channels24, ch)
				bands[domain.Band24GHz] = true
			} else if ch >= 36 {
				caps.Channels5 = append(caps.Channels5, ch)
				bands[domain.Band5GHz] = true
				if strings.Contains(line, "(radar detection)") {
					radarUsable = true
				}
			}
		}
	}

	// DFS certification means the driver exposes radar-detection channels
	// as usable rather than disabled.
	caps.DFSCertified = radarUsable

	if bands[domain.Band24GHz] {
		caps.Bands = append(caps.Bands, domain.Band24GHz)
	}
	if bands[domain.Band5GHz] {
		caps.Bands = append(caps.Bands, domain.Band5GHz)
	}
	return caps
}
