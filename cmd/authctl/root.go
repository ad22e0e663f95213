package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/authctl/internal/keystore"
	"github.com/danmuck/authctl/internal/observability"
	"github.com/danmuck/authctl/internal/protocol"
	"github.com/spf13/cobra"
)

const storeFile = "identities.db"

// env is the state shared by every subcommand after PersistentPreRunE.
type env struct {
	home       string
	configPath string
	passphrase string

	cfg    cliConfig
	store  *keystore.Store
	params keystore.Params
}

func newRootCmd() *cobra.Command {
	e := &env{params: keystore.DefaultParams()}
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Challenge-response TLS authentication client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			observability.InitLogger("authctl")
			return e.init()
		},
	}

	root.PersistentFlags().StringVar(&e.home, "home", "", "state dir (default ~/.authctl)")
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "authctl TOML config (default <home>/config.toml when present)")
	root.PersistentFlags().StringVarP(&e.passphrase, "passphrase", "p", "", "passphrase protecting stored keys")

	root.AddCommand(keygenCmd(e), enrollCmd(e), connectCmd(e), identitiesCmd(e), profileCmd(e))
	return root
}

func (e *env) init() error {
	if e.home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		e.home = filepath.Join(dir, ".authctl")
	}
	if err := os.MkdirAll(e.home, 0o700); err != nil {
		return err
	}

	path := e.configPath
	if path == "" {
		candidate := filepath.Join(e.home, "config.toml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	cfg, err := loadCLIConfig(path)
	if err != nil {
		return err
	}
	e.cfg = cfg

	store, err := keystore.NewStore(filepath.Join(e.home, storeFile))
	if err != nil {
		return err
	}
	e.store = store
	return nil
}

func (e *env) requirePassphrase() error {
	if e.passphrase == "" {
		return fmt.Errorf("%w: passphrase required (-p)", protocol.ErrConfiguration)
	}
	return nil
}

// suid returns the flag value, falling back to the config file.
func (e *env) suid(flag string) (string, error) {
	v := strings.TrimSpace(flag)
	if v == "" {
		v = e.cfg.SUID
	}
	if v == "" {
		return "", fmt.Errorf("%w: suid required (--suid or config suid)", protocol.ErrConfiguration)
	}
	return v, nil
}
