package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/authctl/internal/enroll"
	"github.com/danmuck/authctl/internal/keystore"
	"github.com/danmuck/authctl/internal/protocol"
	"github.com/spf13/cobra"
)

func enrollCmd(e *env) *cobra.Command {
	var suid, token, url string
	var reuse bool
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Generate a key, sign the enrollment token and register with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := e.suid(suid)
			if err != nil {
				return err
			}
			if strings.TrimSpace(token) == "" {
				return fmt.Errorf("%w: --token required", protocol.ErrConfiguration)
			}
			if url == "" {
				url = e.cfg.EnrollURL
			}
			if err := e.requirePassphrase(); err != nil {
				return err
			}

			var ident keystore.Identity
			if reuse {
				ident, err = e.store.Unlock(id, e.passphrase)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Generating ECDSA keys...")
				var rec keystore.Record
				if rec, err = e.generate(id); err == nil {
					ident, err = keystore.Open(rec, e.passphrase)
				}
			}
			if err != nil {
				return err
			}
			signer, err := ident.Signer()
			if err != nil {
				return err
			}
			req, err := enroll.Sign(signer, id, token)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Connecting to registration server...")
			if err := enroll.NewClient(url).Enroll(cmd.Context(), req); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Registration failed.")
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Registration successful.")
			return nil
		},
	}
	cmd.Flags().StringVar(&suid, "suid", "", "user identifier")
	cmd.Flags().StringVar(&token, "token", "", "hex enrollment token issued by the server operator")
	cmd.Flags().StringVar(&url, "url", "", "enrollment endpoint (default from config)")
	cmd.Flags().BoolVar(&reuse, "reuse", false, "sign with the stored key instead of generating a new one")
	return cmd
}
