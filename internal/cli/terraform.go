package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/brianndofor/cloudguard/internal/controls"
	"github.com/spf13/cobra"
)

func NewTerraformCmd() *cobra.Command {
	var out string
	var from string

	cmd := &cobra.Command{
		Use:   "terraform <service>",
		Short: "Generate Terraform implementing the controls",
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
			path, err := writeTerraform(cmd, app, service, list, out)
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote Terraform for %d controls to %s\n", len(list), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (default <service>.tf, - for stdout)")
	cmd.Flags().StringVar(&from, "from", sourceAuto, "Artifact source: auto|draft|context")
	return cmd
}

func writeTerraform(cmd *cobra.Command, app *App, service string, list []controls.SecurityControl, out string) (string, error) {
	code, err := app.Generator.GenerateInfrastructureCode(cmd.Context(), service, list)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	if out == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), code)
		return "", err
	}
	if out == "" {
		out = controls.TerraformFileName(service)
	}
	if err := os.WriteFile(out, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("failed to write terraform: %w", err)
	}
	return out, nil
}
