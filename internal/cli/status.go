package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/brianndofor/cloudguard/internal/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [service]",
		Short: "Show stored review contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			var contexts []store.ReviewContext
			if len(args) > 0 {
				service, err := serviceArg(args)
				if err != nil {
					return err
				}
				rc, ok, err := app.Store.Get(service)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no review context for %s", service)
				}
				contexts = []store.ReviewContext{rc}
			} else {
				contexts, err = app.Store.List()
				if err != nil {
					return err
				}
			}

			if asJSON {
				data, err := json.MarshalIndent(contexts, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if len(contexts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No review contexts stored.")
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderStatusTable(contexts, app.Now()))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print contexts as JSON")
	return cmd
}

func renderStatusTable(contexts []store.ReviewContext, now time.Time) string {
	rows := make([][]string, 0, len(contexts))
	for _, rc := range contexts {
		rows = append(rows, []string{
			rc.ServiceName,
			string(rc.Status),
			fmt.Sprintf("%s/%s#%s", rc.RepoOwner, rc.RepoName, rc.ProposalID),
			strconv.Itoa(len(rc.Controls)),
			age(now, rc.LastUpdated),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SERVICE", "STATUS", "PROPOSAL", "CONTROLS", "UPDATED").
		Rows(rows...).
		String()
}

func age(now time.Time, then time.Time) string {
	if then.IsZero() {
		return "-"
	}
	d := now.Sub(then)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
