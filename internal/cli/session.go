package cli

import (
	"fmt"
	"strings"

	"github.com/brianndofor/cloudguard/internal/credential"
	"github.com/brianndofor/cloudguard/internal/store"
	"github.com/spf13/cobra"
)

func NewSessionCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Interactive picker over stored review contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			if token != "" {
				app.Credentials.Set(credential.Credential{Token: token})
			}
			return runSession(cmd, app, runSessionTUI)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "GitHub token used for every sync in this session")
	return cmd
}

type sessionPicker func(items []store.ReviewContext, notice string) (sessionResult, error)

// runSession shows the picker until the user quits. The credential cache
// lives as long as the session, so one token serves every sync.
func runSession(cmd *cobra.Command, app *App, pick sessionPicker) error {
	if !app.Config.TUI.Enabled {
		return fmt.Errorf("tui session is disabled in config")
	}
	notice := ""
	for {
		contexts, err := app.Store.List()
		if err != nil {
			return err
		}
		if len(contexts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No review contexts stored. Run generate and push first.")
			return nil
		}
		result, err := pick(contexts, notice)
		if err != nil {
			return err
		}
		if result.Action == "" || result.Action == "quit" {
			return nil
		}
		notice, err = runSessionAction(cmd, app, result.Item, result.Action)
		if err != nil {
			notice = fmt.Sprintf("%s: %s", result.Item.ServiceName, ErrorMessage(err))
			app.Logger.Warn("session action failed", "service", result.Item.ServiceName, "action", result.Action, "error", err)
		}
	}
}

func runSessionAction(cmd *cobra.Command, app *App, item store.ReviewContext, action string) (string, error) {
	service := item.ServiceName
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "s", "sync":
		cred, err := resolveCredential(cmd, app, "")
		if err != nil {
			return "", err
		}
		result, err := app.Engine.SyncGuarded(cmd.Context(), app.Flight, service, cred)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s (%s)", service, result.Action.Describe(), result.Context.Status), nil
	case "t", "terraform":
		path, err := writeTerraform(cmd, app, service, item.Controls, "")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: wrote %s", service, path), nil
	case "e", "export":
		path, err := exportCSV(cmd, service, item.Controls, "")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: wrote %s", service, path), nil
	case "o", "open":
		if item.ProposalURL == "" {
			return "", fmt.Errorf("no proposal url stored")
		}
		if _, err := app.Exec.Run(cmd.Context(), "", "gh", "browse", "--repo", item.RepoOwner+"/"+item.RepoName, item.ProposalID); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: opened %s", service, item.ProposalURL), nil
	default:
		return "", fmt.Errorf("unknown action: %s", action)
	}
}
