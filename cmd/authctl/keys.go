package main

import (
	"fmt"
	"time"

	"github.com/danmuck/authctl/internal/crypto"
	"github.com/danmuck/authctl/internal/keystore"
	"github.com/spf13/cobra"
)

func keygenCmd(e *env) *cobra.Command {
	var suid, out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key and store it sealed under the passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := e.suid(suid)
			if err != nil {
				return err
			}
			rec, err := e.generate(id)
			if err != nil {
				return err
			}
			if out != "" {
				if err := keystore.WriteFile(out, rec); err != nil {
					return err
				}
			}
			fp, err := fingerprint(rec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created for %s.\nFingerprint: %s\n", rec.SUID, fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&suid, "suid", "", "user identifier")
	cmd.Flags().StringVar(&out, "out", "", "also write the sealed key to this file")
	return cmd
}

// generate creates a fresh key for suid, seals it and stores it, replacing
// any previous key for the same suid.
func (e *env) generate(suid string) (keystore.Record, error) {
	if err := e.requirePassphrase(); err != nil {
		return keystore.Record{}, err
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return keystore.Record{}, err
	}
	rec, err := keystore.Seal(suid, e.passphrase, key, e.params)
	if err != nil {
		return keystore.Record{}, err
	}
	if err := e.store.Put(rec); err != nil {
		return keystore.Record{}, err
	}
	return rec, nil
}

func fingerprint(rec keystore.Record) (string, error) {
	pub, err := crypto.ParsePublicKey(rec.PubKey)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(pub), nil
}

func identitiesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identities",
		Short: "List stored identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := e.store.List()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(w, "No identities.")
				return nil
			}
			for _, rec := range recs {
				fp, err := fingerprint(rec)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", rec.SUID, fp, rec.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete [suid]",
		Short: "Remove a stored identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := e.store.Delete(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no identity for suid %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			return nil
		},
	})
	return cmd
}
