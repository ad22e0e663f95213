package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/authctl/internal/admin"
	"github.com/danmuck/authctl/internal/client"
	"github.com/danmuck/authctl/internal/protocol/machine"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func connectCmd(e *env) *cobra.Command {
	var (
		suid      string
		host      string
		port      int
		caFile    string
		policy    string
		adminAddr string
		retry     bool
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Authenticate to the server and print session messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := e.suid(suid)
			if err != nil {
				return err
			}
			if err := e.requirePassphrase(); err != nil {
				return err
			}

			cfg := e.cfg.Client
			cfg.SUID = id
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("policy") {
				p, err := machine.ParseSessionPolicy(policy)
				if err != nil {
					return err
				}
				cfg.Profile.SessionPolicy = p
			}
			if caFile == "" {
				caFile = e.cfg.CAFile
			}
			if cfg.CAPEM, err = readCA(caFile); err != nil {
				return err
			}

			ident, err := e.store.Unlock(id, e.passphrase)
			if err != nil {
				return err
			}
			if cfg.Signer, err = ident.Signer(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			status := admin.NewStatus()
			out := cmd.OutOrStdout()
			c, err := client.New(cfg, client.Options{
				OnRun: status.Record,
				OnPayload: func(kind machine.DeliverKind, payload string) {
					fmt.Fprintf(out, "[%s] %s\n", kind, payload)
				},
			})
			if err != nil {
				return err
			}

			if adminAddr == "" {
				adminAddr = e.cfg.AdminAddr
			}
			if adminAddr != "" {
				ln, err := net.Listen("tcp", adminAddr)
				if err != nil {
					return fmt.Errorf("admin listen %s: %w", adminAddr, err)
				}
				adminCtx, cancelAdmin := context.WithCancel(ctx)
				defer cancelAdmin()
				go func() {
					if err := admin.ServeListener(adminCtx, ln, admin.NewRouter("authctl", status, admin.Options{Token: e.cfg.AdminToken})); err != nil {
						log.Error().Err(err).Str("addr", adminAddr).Msg("admin server stopped")
					}
				}()
			}

			connect := c.Connect
			if retry {
				connect = c.ConnectWithRetry
			}
			run, err := connect(ctx)
			fmt.Fprintf(out, "Run %s finished in state %s.\n", run.ID, run.State)
			return err
		},
	}
	cmd.Flags().StringVar(&suid, "suid", "", "user identifier")
	cmd.Flags().StringVar(&host, "host", "", "server host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "server port (default from config)")
	cmd.Flags().StringVar(&caFile, "ca", "", "PEM file of the CA that signs the server certificate")
	cmd.Flags().StringVar(&policy, "policy", "", "session policy: remain-open-until-end or close-after-first-message")
	cmd.Flags().StringVar(&adminAddr, "admin", "", "serve /health, /status and /metrics on this address")
	cmd.Flags().BoolVar(&retry, "retry", false, "retry transport failures that happen before a challenge")
	return cmd
}
