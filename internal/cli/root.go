package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cloudguard",
		Short:         "Generate cloud security controls and keep their review in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(withApp(context.Background(), app))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return nil
			}
			return app.Store.Close()
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Override config path")

	root.AddCommand(NewGenerateCmd())
	root.AddCommand(NewPushCmd())
	root.AddCommand(NewSyncCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewExportCmd())
	root.AddCommand(NewTerraformCmd())
	root.AddCommand(NewSessionCmd())
	root.AddCommand(NewDoctorCmd())
	root.AddCommand(NewConfigCmd())

	return root
}
