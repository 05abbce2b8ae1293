package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/brianndofor/cloudguard/internal/controls"
	"github.com/spf13/cobra"
)

func NewExportCmd() *cobra.Command {
	var out string
	var from string

	cmd := &cobra.Command{
		Use:   "export <service>",
		Short: "Export controls as CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			service, err := serviceArg(args)
			if err != nil {
				return err
			}
			list, err := loadArtifact(app, service, from)
			if err != nil {
				return err
			}
			path, err := exportCSV(cmd, service, list, out)
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d controls to %s\n", len(list), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (default <Service>_Security_Controls.csv, - for stdout)")
	cmd.Flags().StringVar(&from, "from", sourceAuto, "Artifact source: auto|draft|context")
	return cmd
}

// exportCSV returns the written path, or "" when the CSV went to stdout.
func exportCSV(cmd *cobra.Command, service string, list []controls.SecurityControl, out string) (string, error) {
	if out == "-" {
		return "", controls.WriteCSV(cmd.OutOrStdout(), list)
	}
	if out == "" {
		out = controls.ExportFileName(service)
	}
	var buf bytes.Buffer
	if err := controls.WriteCSV(&buf, list); err != nil {
		return "", err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return out, nil
}
