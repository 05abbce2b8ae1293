package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brianndofor/cloudguard/internal/controls"
	"github.com/brianndofor/cloudguard/internal/github"
	"github.com/brianndofor/cloudguard/internal/lifecycle"
	"github.com/spf13/cobra"
)

type pushOptions struct {
	repo      string
	owner     string
	base      string
	reviewers string
	token     string
	from      string
	yes       bool
	force     bool
}

func NewPushCmd() *cobra.Command {
	var opts pushOptions

	cmd := &cobra.Command{
		Use:   "push <service>",
		Short: "Open a pull request proposing the generated controls",
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

			var list []controls.SecurityControl
			if opts.from != "" {
				list, err = readArtifactFile(opts.from)
			} else {
				list, err = loadDraft(app, service)
			}
			if err != nil {
				return err
			}

			cfg, err := pushBackendConfig(app, opts)
			if err != nil {
				return err
			}
			if !opts.yes {
				prompt := fmt.Sprintf("Open a pull request with %d controls for %s in %s/%s? [y/N]: ", len(list), service, cfg.Owner, cfg.Repo)
				ok, err := confirm(cmd, prompt)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			cred, err := resolveCredential(cmd, app, opts.token)
			if err != nil {
				return err
			}
			cfg.Token = cred.Token

			push := app.Engine.Push
			if opts.force {
				push = app.Engine.Replace
			}
			rc, err := push(cmd.Context(), service, list, cfg)
			if errors.Is(err, lifecycle.ErrProposalOpen) {
				return fmt.Errorf("%w: run sync to apply feedback, or pass --force to open a replacement", err)
			}
			if err != nil {
				return err
			}
			if opts.from == "" {
				if err := app.Store.DeleteDraft(service); err != nil {
					app.Logger.Warn("failed to delete draft", "service", service, "error", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s (%s, branch %s)\n", rc.ProposalURL, rc.Status, rc.BranchName)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.repo, "repo", "", "Target repository OWNER/REPO")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "Repository owner (with --repo NAME)")
	cmd.Flags().StringVar(&opts.base, "base", "", "Branch to propose into")
	cmd.Flags().StringVar(&opts.reviewers, "reviewers", "", "Comma separated reviewer logins")
	cmd.Flags().StringVar(&opts.token, "token", "", "GitHub token (defaults to GH_TOKEN)")
	cmd.Flags().StringVar(&opts.from, "from", "", "Read the artifact from a JSON file instead of the draft")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Open a new proposal even if one is still open")
	return cmd
}

// pushBackendConfig layers flags over the project config.
func pushBackendConfig(app *App, opts pushOptions) (github.BackendConfig, error) {
	gh := app.Project.GitHub
	cfg := github.BackendConfig{
		Owner:      gh.Owner,
		Repo:       gh.Repo,
		BranchBase: gh.BaseBranch,
		Reviewers:  gh.Reviewers,
	}
	if opts.repo != "" {
		if strings.Contains(opts.repo, "/") {
			owner, repo, err := github.ParseRepo(opts.repo)
			if err != nil {
				return github.BackendConfig{}, err
			}
			cfg.Owner, cfg.Repo = owner, repo
		} else {
			cfg.Repo = opts.repo
		}
	}
	if opts.owner != "" {
		cfg.Owner = opts.owner
	}
	if opts.base != "" {
		cfg.BranchBase = opts.base
	}
	if opts.reviewers != "" {
		cfg.Reviewers = github.ParseReviewers(opts.reviewers)
	}
	if err := cfg.Validate(); err != nil {
		return github.BackendConfig{}, fmt.Errorf("%w: pass --repo OWNER/REPO or set github.owner and github.repo in cloudguard.yaml", err)
	}
	return cfg, nil
}
