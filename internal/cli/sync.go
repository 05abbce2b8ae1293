package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brianndofor/cloudguard/internal/lifecycle"
	"github.com/spf13/cobra"
)

type syncOptions struct {
	all         bool
	token       string
	json        bool
	concurrency int
}

type syncReport struct {
	Service     string `json:"service"`
	Action      string `json:"action,omitempty"`
	Status      string `json:"status,omitempty"`
	ProposalURL string `json:"proposalUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

func NewSyncCmd() *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync [service]",
		Short: "Reconcile stored review contexts with their pull requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			services, err := syncTargets(app, args, opts.all)
			if err != nil {
				return err
			}
			if len(services) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No review contexts stored.")
				return nil
			}
			cred, err := resolveCredential(cmd, app, opts.token)
			if err != nil {
				return err
			}

			outcomes := app.Engine.SyncAll(cmd.Context(), app.Flight, services, cred, opts.concurrency)
			return printSyncOutcomes(cmd, outcomes, opts.json)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Sync every stored context")
	cmd.Flags().StringVar(&opts.token, "token", "", "GitHub token (defaults to GH_TOKEN)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print results as JSON")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", lifecycle.DefaultSyncConcurrency, "Services synced at once with --all")
	return cmd
}

func syncTargets(app *App, args []string, all bool) ([]string, error) {
	if all {
		if len(args) > 0 {
			return nil, fmt.Errorf("--all does not take a service name")
		}
		contexts, err := app.Store.List()
		if err != nil {
			return nil, err
		}
		services := make([]string, 0, len(contexts))
		for _, rc := range contexts {
			services = append(services, rc.ServiceName)
		}
		return services, nil
	}
	service, err := serviceArg(args)
	if err != nil {
		return nil, fmt.Errorf("%w (or pass --all)", err)
	}
	return []string{service}, nil
}

func printSyncOutcomes(cmd *cobra.Command, outcomes []lifecycle.Outcome, asJSON bool) error {
	reports := make([]syncReport, 0, len(outcomes))
	failed := 0
	for _, outcome := range outcomes {
		report := syncReport{Service: outcome.Service}
		if outcome.Err != nil {
			failed++
			report.Error = ErrorMessage(outcome.Err)
		} else {
			report.Action = outcome.Result.Action.String()
			report.Status = string(outcome.Result.Context.Status)
			report.ProposalURL = outcome.Result.Context.ProposalURL
		}
		reports = append(reports, report)
	}

	if asJSON {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		for i, report := range reports {
			if report.Error != "" {
				if len(reports) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: failed: %s\n", report.Service, report.Error)
				}
				continue
			}
			action := outcomes[i].Result.Action
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s) %s\n", report.Service, action.Describe(), report.Status, report.ProposalURL)
		}
	}

	if failed == 0 {
		return nil
	}
	if len(outcomes) == 1 {
		return outcomes[0].Err
	}
	errs := make([]error, 0, failed)
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			errs = append(errs, outcome.Err)
		}
	}
	return fmt.Errorf("%d of %d syncs failed: %w", failed, len(outcomes), errors.Join(errs...))
}
