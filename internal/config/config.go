package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. It is read once at startup
// and treated as immutable afterwards.
type Config struct {
	Addr      string
	DataDir   string
	SessionID string
	Debug     bool

	// Scheduler
	SwitchRetries int
	SwitchBackoff time.Duration
	AgingInterval time.Duration

	// Channel planner
	TargetChannels   []int
	PreferredChannel int

	// Orchestrator
	MaxConcurrent  int
	MaxAttempts    int
	CooldownSecs   int
	MinSignalDBm   int
	PhaseTimeout   time.Duration
	LeaseWait      time.Duration
	DisabledPhases []string
	AllowDowngrade bool
	MinBattery     int
	MaxSessionMins int
	Blacklist      []string
	Whitelist      []string

	// Executors
	Wordlist string
}

// Load parses command line flags and environment variables. Flags take
// precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	cfg.Addr = getEnv("WPILOT_ADDR", "127.0.0.1:8737")
	cfg.DataDir = getEnv("WPILOT_DATA", defaultDataDir())
	cfg.SessionID = getEnv("WPILOT_SESSION", "")
	cfg.Debug = getEnvBool("WPILOT_DEBUG", false)
	cfg.Wordlist = getEnv("WPILOT_WORDLIST", "/usr/share/wordlists/rockyou.txt")
	channelStr := getEnv("WPILOT_CHANNELS", "")
	blacklistStr := getEnv("WPILOT_BLACKLIST", "")
	whitelistStr := getEnv("WPILOT_WHITELIST", "")
	disabledStr := getEnv("WPILOT_DISABLE_PHASES", "")

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Status server address")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Data directory for sessions, captures and the audit db")
	flag.StringVar(&cfg.SessionID, "session", cfg.SessionID, "Session id to resume (empty starts a new session)")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")

	flag.IntVar(&cfg.SwitchRetries, "switch-retries", getEnvInt("WPILOT_SWITCH_RETRIES", 3), "Mode switch retries before quarantining an interface")
	backoffMs := flag.Int("switch-backoff", getEnvInt("WPILOT_SWITCH_BACKOFF_MS", 250), "Initial mode switch backoff in milliseconds")
	agingSecs := flag.Int("aging-interval", getEnvInt("WPILOT_AGING_SECS", 15), "Seconds of waiting per priority level of aging boost")

	flag.StringVar(&channelStr, "channels", channelStr, "Priority scan channels (comma separated)")
	flag.IntVar(&cfg.PreferredChannel, "preferred-channel", getEnvInt("WPILOT_PREFERRED_CHANNEL", 0), "Preferred channel for single-channel tasks")

	flag.IntVar(&cfg.MaxConcurrent, "max-concurrent", getEnvInt("WPILOT_MAX_CONCURRENT", 2), "Maximum targets attacked simultaneously")
	flag.IntVar(&cfg.MaxAttempts, "max-attempts", getEnvInt("WPILOT_MAX_ATTEMPTS", 3), "Attack attempts per target before it is exhausted")
	flag.IntVar(&cfg.CooldownSecs, "cooldown", getEnvInt("WPILOT_COOLDOWN_SECS", 300), "Cooldown between attempts in seconds")
	flag.IntVar(&cfg.MinSignalDBm, "min-signal", getEnvInt("WPILOT_MIN_SIGNAL", -75), "Weakest signal (dBm) worth attacking")
	phaseTimeoutSecs := flag.Int("phase-timeout", getEnvInt("WPILOT_PHASE_TIMEOUT_SECS", 120), "Hard timeout per attack phase in seconds")
	leaseWaitSecs := flag.Int("lease-wait", getEnvInt("WPILOT_LEASE_WAIT_SECS", 30), "Maximum wait for an interface lease in seconds")
	flag.StringVar(&disabledStr, "disable-phases", disabledStr, "Attack phases to disable (comma separated: pmkid,deauth_handshake,evil_twin)")
	flag.BoolVar(&cfg.AllowDowngrade, "allow-downgrade", getEnvBool("WPILOT_ALLOW_DOWNGRADE", false), "Treat WPA3 targets as attackable via downgrade")
	flag.IntVar(&cfg.MinBattery, "min-battery", getEnvInt("WPILOT_MIN_BATTERY", 20), "Pause new attacks below this battery percentage")
	flag.IntVar(&cfg.MaxSessionMins, "max-session", getEnvInt("WPILOT_MAX_SESSION_MINS", 0), "Session time budget in minutes (0 = unlimited)")
	flag.StringVar(&blacklistStr, "blacklist", blacklistStr, "BSSIDs never to attack (comma separated)")
	flag.StringVar(&whitelistStr, "whitelist", whitelistStr, "If set, only these BSSIDs are attacked (comma separated)")
	flag.StringVar(&cfg.Wordlist, "wordlist", cfg.Wordlist, "Wordlist for the cracking engine")

	flag.Parse()

	cfg.SwitchBackoff = time.Duration(*backoffMs) * time.Millisecond
	cfg.AgingInterval = time.Duration(*agingSecs) * time.Second
	cfg.PhaseTimeout = time.Duration(*phaseTimeoutSecs) * time.Second
	cfg.LeaseWait = time.Duration(*leaseWaitSecs) * time.Second
	cfg.TargetChannels = parseInts(channelStr)
	cfg.Blacklist = parseList(blacklistStr)
	cfg.Whitelist = parseList(whitelistStr)
	cfg.DisabledPhases = parseList(disabledStr)

	return cfg
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseInts(s string) []int {
	var out []int
	for _, p := range parseList(s) {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// defaultDataDir is ~/.wpilot, created on demand.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: could not resolve home directory, using current dir: %v", err)
		return ".wpilot"
	}
	dir := filepath.Join(home, ".wpilot")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Printf("Warning: could not create %s, using current dir: %v", dir, err)
		return ".wpilot"
	}
	return dir
}
