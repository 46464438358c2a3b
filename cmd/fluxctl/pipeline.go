package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fluxmap/internal/pipeline"
)

func runCmd(flags *rootFlags) *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger a pipeline run and wait for its manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(flags)
			raw, err := client.post(cmd.Context(), "/api/pipeline/run",
				map[string]bool{"initialize_demo": demo})
			if err != nil {
				return err
			}
			if flags.rawJSON {
				return printJSON(cmd.OutOrStdout(), raw)
			}
			return printManifest(cmd.OutOrStdout(), raw)
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "seed demo data into an empty upload directory first")
	return cmd
}

func statusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last run's manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(flags)
			raw, err := client.get(cmd.Context(), "/api/pipeline/status")
			if err != nil {
				return err
			}
			if flags.rawJSON {
				return printJSON(cmd.OutOrStdout(), raw)
			}
			return printManifest(cmd.OutOrStdout(), raw)
		},
	}
}

func resetCmd(flags *rootFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe all snapshots, the ledger, and archived raw data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset destroys all processed data; re-run with --yes to confirm")
			}
			client := newAPIClient(flags)
			raw, err := client.post(cmd.Context(), "/api/system/reset", nil)
			if err != nil {
				return err
			}
			if flags.rawJSON {
				return printJSON(cmd.OutOrStdout(), raw)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func fetchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Pull the latest data from the configured external source",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(flags)
			raw, err := client.post(cmd.Context(), "/api/data/fetch", nil)
			if err != nil {
				return err
			}
			if flags.rawJSON {
				return printJSON(cmd.OutOrStdout(), raw)
			}
			var body struct {
				SavedPath string `json:"saved_path"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched to %s\n", body.SavedPath)
			return nil
		},
	}
}

// printManifest renders a manifest as a stage table with headline totals.
func printManifest(w io.Writer, raw json.RawMessage) error {
	var m pipeline.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}

	fmt.Fprintf(w, "run %s  status=%s  version=%s\n", m.RunID, m.Status, m.PipelineVersion)
	fmt.Fprintf(w, "started %s  quality=%.2f%%  rows %d -> %d\n\n",
		m.RunTimestamp.Format("2006-01-02 15:04:05 MST"),
		m.Summary.DataQualityScore,
		m.Summary.TotalRowsProcessed, m.Summary.TotalRowsOutput)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tIN\tOUT\tDROPPED\tSECONDS")
	for _, name := range m.StageOrder {
		s := m.Stages[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.3f\n",
			name, s.RowsIn, s.RowsOut, s.RowsDropped, s.Duration)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warning := range m.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	for _, e := range m.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	return nil
}
