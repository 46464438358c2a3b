package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fluxmap/internal/auth"
	"fluxmap/internal/ingest"
)

func seedCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write deterministic demo CSVs into an upload directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			seeded, err := ingest.SeedDemo(dir, log)
			if err != nil {
				return err
			}
			if !seeded {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already holds data, nothing seeded\n", dir)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "demo data written to %s\n", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./uploads", "upload directory to seed")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token from FLUXMAP_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("FLUXMAP_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("FLUXMAP_JWT_SECRET is not set")
			}
			manager, err := auth.NewManager(secret)
			if err != nil {
				return err
			}
			token, err := manager.Generate(subject, auth.RoleAdmin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "fluxctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
