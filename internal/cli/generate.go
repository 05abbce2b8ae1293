package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brianndofor/cloudguard/internal/controls"
	"github.com/spf13/cobra"
)

func NewGenerateCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "generate <service>",
		Short: "Generate security controls for a cloud service",
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
			list, err := app.Generator.Generate(cmd.Context(), service)
			if err != nil {
				return err
			}
			if err := app.Store.SaveDraft(service, list); err != nil {
				return err
			}
			app.Logger.Info("draft saved", "service", service, "controls", len(list))

			switch format {
			case "json":
				return printControlsJSON(cmd, service, list)
			case "csv":
				return controls.WriteCSV(cmd.OutOrStdout(), list)
			case "md":
				_, err := fmt.Fprint(cmd.OutOrStdout(), controls.RenderMarkdown(service, list))
				return err
			default:
				return printControlsText(cmd, service, list)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "text|json|csv|md")
	return cmd
}

func printControlsJSON(cmd *cobra.Command, service string, list []controls.SecurityControl) error {
	payload := map[string]any{
		"serviceName": service,
		"controls":    list,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func printControlsText(cmd *cobra.Command, service string, list []controls.SecurityControl) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d controls\n", service, len(list))
	controlPlane, dataPlane := controls.ByPlane(list)
	for _, group := range []struct {
		plane controls.Plane
		rows  []controls.SecurityControl
	}{{controls.ControlPlane, controlPlane}, {controls.DataPlane, dataPlane}} {
		if len(group.rows) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s (%d)\n", group.plane.Label(), len(group.rows))
		for _, c := range group.rows {
			fmt.Fprintf(out, "- %s %s\n", c.ControlID, c.ControlName)
			if c.ControlDescription != "" {
				fmt.Fprintf(out, "  %s\n", c.ControlDescription)
			}
			if refs := controls.SplitMapping(c.Mapping); len(refs) > 0 {
				fmt.Fprintf(out, "  Mapping: %s\n", strings.Join(refs, " | "))
			}
		}
	}
	_, err := fmt.Fprintln(out, "\nNext: cloudguard push", quoteService(service))
	return err
}

func quoteService(service string) string {
	return fmt.Sprintf("%q", service)
}
