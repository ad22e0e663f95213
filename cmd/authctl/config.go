package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/authctl/internal/client"
	"github.com/danmuck/authctl/internal/config"
	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/machine"
)

type fileConfig struct {
	SUID             string `toml:"suid"`
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	CAFile           string `toml:"ca_file"`
	ProfileFile      string `toml:"profile_file"`
	SessionPolicy    string `toml:"session_policy"`
	EnrollURL        string `toml:"enroll_url"`
	AdminAddr        string `toml:"admin_addr"`
	AdminToken       string `toml:"admin_token"`
	ConnectTimeout   string `toml:"connect_timeout"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	ReadTimeout      string `toml:"read_timeout"`
	WriteTimeout     string `toml:"write_timeout"`
	RetryAttempts    int    `toml:"retry_attempts"`
}

// cliConfig is the resolved CLI configuration before flag overrides.
type cliConfig struct {
	SUID        string
	CAFile      string
	ProfileFile string
	EnrollURL   string
	AdminAddr   string
	AdminToken  string
	Client      client.Config
}

func defaultCLIConfig() cliConfig {
	cfg := client.DefaultConfig()
	cfg.Host = "ec2-54-67-122-91.us-west-1.compute.amazonaws.com"
	return cliConfig{
		EnrollURL: "http://ec2-54-67-122-91.us-west-1.compute.amazonaws.com:8900",
		Client:    cfg,
	}
}

// loadCLIConfig applies the keys present in path over the defaults.
// An empty path returns the defaults.
func loadCLIConfig(path string) (cliConfig, error) {
	cfg := defaultCLIConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cliConfig{}, fmt.Errorf("%w: load authctl config: %v", protocol.ErrConfiguration, err)
	}

	if meta.IsDefined("suid") {
		cfg.SUID = strings.TrimSpace(raw.SUID)
	}
	if meta.IsDefined("host") {
		cfg.Client.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Client.Port = raw.Port
	}
	if meta.IsDefined("ca_file") {
		cfg.CAFile = strings.TrimSpace(raw.CAFile)
	}
	if meta.IsDefined("profile_file") {
		cfg.ProfileFile = strings.TrimSpace(raw.ProfileFile)
	}
	if meta.IsDefined("enroll_url") {
		cfg.EnrollURL = strings.TrimSpace(raw.EnrollURL)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("retry_attempts") {
		cfg.Client.Backoff.MaxAttempts = raw.RetryAttempts
	}

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.Client.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Client.HandshakeTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.Client.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Client.WriteTimeout},
	} {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return cliConfig{}, fmt.Errorf("%w: parse %s: %v", protocol.ErrConfiguration, d.key, err)
		}
		*d.dst = v
	}

	cfg.CAFile = relativeTo(path, cfg.CAFile)
	cfg.ProfileFile = relativeTo(path, cfg.ProfileFile)
	if cfg.ProfileFile != "" {
		profile, err := config.LoadProfile(cfg.ProfileFile)
		if err != nil {
			return cliConfig{}, err
		}
		cfg.Client.Profile = profile
	}
	if meta.IsDefined("session_policy") {
		policy, err := machine.ParseSessionPolicy(raw.SessionPolicy)
		if err != nil {
			return cliConfig{}, fmt.Errorf("%w: %v", protocol.ErrConfiguration, err)
		}
		cfg.Client.Profile.SessionPolicy = policy
	}
	return cfg, nil
}

// relativeTo resolves p against the directory of the config file.
func relativeTo(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

func readCA(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: ca_file required", protocol.ErrConfiguration)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read ca: %v", protocol.ErrConfiguration, err)
	}
	return b, nil
}
