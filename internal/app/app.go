package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/adapters/executor"
	"github.com/lcalzada-xor/wpilot/internal/adapters/hardware"
	"github.com/lcalzada-xor/wpilot/internal/adapters/session"
	"github.com/lcalzada-xor/wpilot/internal/adapters/status"
	"github.com/lcalzada-xor/wpilot/internal/adapters/storage"
	"github.com/lcalzada-xor/wpilot/internal/config"
	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/lcalzada-xor/wpilot/internal/core/services/orchestrator"
	"github.com/lcalzada-xor/wpilot/internal/core/services/planner"
	"github.com/lcalzada-xor/wpilot/internal/core/services/registry"
	"github.com/lcalzada-xor/wpilot/internal/core/services/scheduler"
	"github.com/lcalzada-xor/wpilot/internal/telemetry"
)

const sessionRetention = 7 * 24 * time.Hour

// Application is the facade wiring hardware, scheduler, orchestrator and
// the status surface together.
type Application struct {
	Config       *config.Config
	Registry     *registry.Registry
	Scheduler    *scheduler.Scheduler
	Orchestrator *orchestrator.Orchestrator
	Cracker      *executor.Cracker
	StatusServer *status.Server
	AuditStore   *storage.AuditStore
	WSManager    *status.WSManager
}

// New bootstraps every component. Hardware discovery happens here so the
// scheduler starts with a seeded interface table.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	telemetry.InitMetrics()

	app := &Application{Config: cfg}

	sessionStore, err := session.NewStore(filepath.Join(cfg.DataDir, "sessions"))
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	if err := sessionStore.Prune(sessionRetention, 5); err != nil {
		slog.Warn("Session pruning failed", "error", err)
	}

	app.AuditStore, err = storage.NewAuditStore(filepath.Join(cfg.DataDir, "audit.db"))
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}

	probe := hardware.NewProbe()
	watcher := hardware.NewWatcher()
	switcher := hardware.NewSwitcher()
	battery := hardware.NewBattery()

	app.Registry = registry.New(probe, watcher)

	discoverCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	ifaces, err := app.Registry.Discover(discoverCtx)
	if err != nil {
		// Zero capacity is survivable; hotplug can still add adapters.
		slog.Warn("Interface discovery failed, starting with zero capacity", "error", err)
		ifaces = nil
	}

	plan := planner.New(planner.Config{
		TargetChannels:   cfg.TargetChannels,
		PreferredChannel: cfg.PreferredChannel,
	})

	schedCfg := scheduler.DefaultConfig()
	schedCfg.SwitchRetries = cfg.SwitchRetries
	schedCfg.SwitchBackoff = cfg.SwitchBackoff
	schedCfg.AgingInterval = cfg.AgingInterval
	app.Scheduler = scheduler.New(plan, switcher, schedCfg, ifaces)
	app.Registry.SetSink(app.Scheduler)

	captureExec := executor.NewCapture(filepath.Join(cfg.DataDir, "captures"))
	twinExec := executor.NewEvilTwin(filepath.Join(cfg.DataDir, "loot"))
	app.Cracker = executor.NewCracker(cfg.Wordlist, filepath.Join(cfg.DataDir, "wpilot.potfile"))

	app.Orchestrator, err = orchestrator.New(
		orchestratorConfig(cfg),
		app.Scheduler,
		captureExec,
		twinExec,
		app.Cracker,
		sessionStore,
		app.AuditStore,
		battery,
		cfg.SessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	app.WSManager = status.NewWSManager(app.Orchestrator)
	app.StatusServer = status.NewServer(
		cfg.Addr,
		app.Orchestrator,
		app.Scheduler,
		app.AuditStore,
		app.Orchestrator,
		app.WSManager,
	)
	return app, nil
}

// Run starts every component and blocks until ctx is cancelled or the
// status server fails.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting wpilot components")

	go app.Scheduler.Run(ctx)
	go func() {
		if err := app.Registry.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Hotplug watch stopped", "error", err)
		}
	}()
	app.Cracker.Start(ctx)
	app.WSManager.Start(ctx)
	go app.Orchestrator.Run(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := app.StatusServer.Start(); err != nil {
			errChan <- fmt.Errorf("status server: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.StatusServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Status server shutdown incomplete", "error", err)
	}
	if err := app.AuditStore.Close(); err != nil {
		slog.Warn("Audit store close failed", "error", err)
	}
	return nil
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.MaxConcurrent = cfg.MaxConcurrent
	oc.MaxAttempts = cfg.MaxAttempts
	oc.Cooldown = time.Duration(cfg.CooldownSecs) * time.Second
	oc.MinSignalDBm = cfg.MinSignalDBm
	oc.PhaseTimeout = cfg.PhaseTimeout
	oc.LeaseWait = cfg.LeaseWait
	oc.AllowDowngrade = cfg.AllowDowngrade
	oc.MinBattery = cfg.MinBattery
	oc.MaxSessionTime = time.Duration(cfg.MaxSessionMins) * time.Minute
	oc.Blacklist = cfg.Blacklist
	oc.Whitelist = cfg.Whitelist

	// Phase names are documented lowercase on the flag; constants are upper.
	disabled := make(map[domain.AttackPhase]bool, len(cfg.DisabledPhases))
	for _, name := range cfg.DisabledPhases {
		disabled[domain.AttackPhase(strings.ToUpper(name))] = true
	}
	oc.EnabledPhases = nil
	for _, ph := range domain.PhaseOrder {
		if !disabled[ph] {
			oc.EnabledPhases = append(oc.EnabledPhases, ph)
		}
	}
	return oc
}
