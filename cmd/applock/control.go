package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
)

var errNotRunning = errors.New("applock is not running")

// controlTarget returns the registry of the running instance. Control
// commands do not need a logger or a backend.
func controlTarget() (*infra.FileRegistry, domain.ProcessManager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	pm := infra.NewProcessManager()
	return infra.NewFileRegistry(cfg.RegistryPath(), pm), pm, nil
}

// signalInstance delivers sig to the registered instance.
func signalInstance(registry *infra.FileRegistry, pm domain.ProcessManager, sig syscall.Signal, done string) error {
	inst, err := registry.Get()
	if err != nil {
		return err
	}
	if inst == nil || !pm.IsRunning(inst.PID) {
		return errNotRunning
	}
	if err := pm.Signal(inst.PID, sig); err != nil {
		return fmt.Errorf("failed to signal pid %d: %w", inst.PID, err)
	}
	fmt.Println(done)
	return nil
}

func runEnd(cmd *cobra.Command, args []string) error {
	registry, pm, err := controlTarget()
	if err != nil {
		return err
	}
	return signalInstance(registry, pm, syscall.SIGUSR1, "session end requested")
}

func runQuit(cmd *cobra.Command, args []string) error {
	registry, pm, err := controlTarget()
	if err != nil {
		return err
	}
	return signalInstance(registry, pm, syscall.SIGTERM, "emergency quit requested")
}

type statusOutput struct {
	Running   bool       `json:"running"`
	PID       int        `json:"pid,omitempty"`
	Mode      string     `json:"mode,omitempty"`
	App       string     `json:"app,omitempty"`
	Duration  string     `json:"duration,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Version   string     `json:"version,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	registry, pm, err := controlTarget()
	if err != nil {
		return err
	}

	inst, err := registry.Get()
	if err != nil {
		return err
	}

	var out statusOutput
	if inst != nil && pm.IsRunning(inst.PID) {
		started := inst.StartedAt
		out = statusOutput{
			Running:   true,
			PID:       inst.PID,
			Mode:      string(inst.Mode),
			App:       inst.App,
			Duration:  inst.Duration,
			StartedAt: &started,
			Version:   inst.Version,
		}
	}

	if jsonOutput {
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if !out.Running {
		fmt.Println("applock is not running")
		return nil
	}

	fmt.Println("=== applock status ===")
	fmt.Printf("PID:     %d\n", out.PID)
	fmt.Printf("Mode:    %s\n", out.Mode)
	if out.App != "" {
		fmt.Printf("App:     %s\n", out.App)
		fmt.Printf("Length:  %s\n", out.Duration)
	}
	fmt.Printf("Started: %s\n", out.StartedAt.Format(time.RFC3339))
	fmt.Printf("Version: %s\n", out.Version)
	return nil
}
