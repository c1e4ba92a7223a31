// Package simconfig reads sim-runner's tunables from environment variables,
// applying sane defaults and returning descriptive errors for invalid
// overrides. Adapted from the teacher's internal/config (env-var loading
// with validated overrides), retargeted from broker networking settings to
// run parameters.
package simconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultSeed is the master RNG seed used when SIM_SEED is unset.
	DefaultSeed uint64 = 42
	// DefaultTicks is the number of ticks run when SIM_TICKS is unset.
	DefaultTicks uint64 = 365
	// DefaultDBPath opens an in-memory store when SIM_DB is unset.
	DefaultDBPath = ":memory:"
	// DefaultDataDir is where archive bundles are written when SIM_DATA_DIR is unset.
	DefaultDataDir = "./data"
	// DefaultTelemetryAddr is left empty by default: the telemetry server
	// only starts when SIM_TELEMETRY_ADDR is set.
	DefaultTelemetryAddr = ""
	// DefaultLogLevel controls sim-runner's log verbosity.
	DefaultLogLevel = "info"
)

// Config captures all runtime tunables for a sim-runner invocation.
type Config struct {
	Seed          uint64
	Ticks         uint64
	DBPath        string
	DataDir       string
	Archive       bool
	TelemetryAddr string
	LogLevel      string
}

// Load reads configuration from environment variables, applying defaults
// and returning a descriptive error for any invalid override. Values here
// are meant to be used as flag.Xxx defaults, so that explicit command-line
// flags still take precedence over the environment.
func Load() (Config, error) {
	cfg := Config{
		Seed:          DefaultSeed,
		Ticks:         DefaultTicks,
		DBPath:        getString("SIM_DB", DefaultDBPath),
		DataDir:       getString("SIM_DATA_DIR", DefaultDataDir),
		TelemetryAddr: getString("SIM_TELEMETRY_ADDR", DefaultTelemetryAddr),
		LogLevel:      strings.ToLower(getString("SIM_LOG_LEVEL", DefaultLogLevel)),
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("SIM_SEED")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("SIM_SEED must be an unsigned integer, got %q", raw))
		} else {
			cfg.Seed = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_TICKS")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || value == 0 {
			problems = append(problems, fmt.Sprintf("SIM_TICKS must be a positive integer, got %q", raw))
		} else {
			cfg.Ticks = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_ARCHIVE")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("SIM_ARCHIVE must be a boolean value, got %q", raw))
		} else {
			cfg.Archive = value
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("SIM_LOG_LEVEL must be one of debug|info|warn|error, got %q", cfg.LogLevel))
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
