// Package logging sets up the process-wide zerolog logger for authctl.
//
// Two shapes exist: the CLI shape (info, timestamps, console output on
// stderr) and the test shape (debug, no timestamps). The first Configure call
// wins; AUTHCTL_LOG_* variables adjust the chosen shape. AUTHCTL_LOG_BYPASS
// switches to raw JSON lines for log shippers.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "AUTHCTL_LOG_LEVEL"
	EnvLogTimestamp = "AUTHCTL_LOG_TIMESTAMP"
	EnvLogNoColor   = "AUTHCTL_LOG_NOCOLOR"
	EnvLogBypass    = "AUTHCTL_LOG_BYPASS"
)

// Profile selects the base logger shape.
type Profile int

const (
	// ProfileRuntime is used by cmd/authctl.
	ProfileRuntime Profile = iota
	// ProfileTest is used by testlog.Start.
	ProfileTest
)

// Config is the logger shape after env overrides.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	// Bypass writes JSON lines instead of the console format.
	Bypass bool
	Out    io.Writer
}

var profiles = map[Profile]Config{
	ProfileRuntime: {Level: zerolog.InfoLevel, Timestamp: true},
	ProfileTest:    {Level: zerolog.DebugLevel},
}

// levelAliases extends zerolog's level names with the spellings operators use.
var levelAliases = map[string]zerolog.Level{
	"diagnostics": zerolog.TraceLevel,
	"warning":     zerolog.WarnLevel,
	"off":         zerolog.Disabled,
	"none":        zerolog.Disabled,
	"disable":     zerolog.Disabled,
}

var once sync.Once

func ConfigureRuntime() { Configure(ProfileRuntime) }

func ConfigureTests() { Configure(ProfileTest) }

// Configure installs the logger for profile. Only the first call in a process
// has any effect, so a test binary keeps the test shape even when code under
// test asks for the runtime one.
func Configure(profile Profile) {
	once.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		install(cfg)
	})
}

func defaultConfig(profile Profile) Config {
	cfg, ok := profiles[profile]
	if !ok {
		cfg = profiles[ProfileRuntime]
	}
	cfg.Out = os.Stderr
	return cfg
}

func install(cfg Config) {
	zerolog.SetGlobalLevel(cfg.Level)
	if cfg.Bypass {
		log.Logger = zerolog.New(cfg.Out).With().Timestamp().Logger()
		return
	}
	console := zerolog.ConsoleWriter{Out: cfg.Out, NoColor: cfg.NoColor, TimeFormat: time.RFC3339}
	if !cfg.Timestamp {
		console.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	log.Logger = zerolog.New(console).With().Timestamp().Logger()
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	for env, dst := range map[string]*bool{
		EnvLogTimestamp: &cfg.Timestamp,
		EnvLogNoColor:   &cfg.NoColor,
		EnvLogBypass:    &cfg.Bypass,
	} {
		if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(env))); err == nil {
			*dst = v
		}
	}
}

// parseLevel accepts zerolog level names plus levelAliases, case-insensitively.
// Empty and unknown values report false so the profile level stays.
func parseLevel(raw string) (zerolog.Level, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return zerolog.InfoLevel, false
	}
	if lvl, ok := levelAliases[name]; ok {
		return lvl, true
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, false
	}
	return lvl, true
}
