package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/brianndofor/cloudguard/internal/prompt"
	"github.com/spf13/cobra"
)

func NewDoctorCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			mock := os.Getenv("CLOUDGUARD_MOCK") == "1"

			fmt.Fprintln(cmd.OutOrStdout(), "cloudguard doctor")
			if !mock {
				if err := app.GH.CheckInstalled(); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "- gh: ok")
			if token == "" {
				token = os.Getenv("GH_TOKEN")
			}
			if err := app.GH.AuthStatus(ctx, token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "- gh auth: ok")

			if !mock {
				if _, err := exec.LookPath(app.Config.Generator.Command); err != nil {
					return fmt.Errorf("generator not found: %s", app.Config.Generator.Command)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "- generator: ok")

			schema, err := prompt.LoadSchema(prompt.SchemaControls)
			if err != nil {
				return err
			}
			if err := app.GenRunner.HealthCheck(ctx, schema); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "- generator schema: failed\n%v\n", err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "- generator schema: ok")

			contexts, err := app.Store.List()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "- store: ok (%d contexts)\n", len(contexts))
			if app.Project.GitHub.Owner == "" || app.Project.GitHub.Repo == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "- github repo: not configured (push needs --repo)")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "- github repo: %s/%s\n", app.Project.GitHub.Owner, app.Project.GitHub.Repo)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "doctor checks passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "GitHub token to check (defaults to GH_TOKEN)")
	return cmd
}
