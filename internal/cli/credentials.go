package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/brianndofor/cloudguard/internal/credential"
	"github.com/spf13/cobra"
)

// resolveCredential tries the --token flag, the session cache, GH_TOKEN and
// GITHUB_TOKEN, then asks on stdin.
func resolveCredential(cmd *cobra.Command, app *App, flagToken string) (credential.Credential, error) {
	if token := strings.TrimSpace(flagToken); token != "" {
		return credential.Credential{Token: token}, nil
	}
	if cached, ok := app.Credentials.Get(); ok {
		return cached, nil
	}
	for _, name := range []string{"GH_TOKEN", "GITHUB_TOKEN"} {
		if token := strings.TrimSpace(os.Getenv(name)); token != "" {
			return credential.Credential{Token: token}, nil
		}
	}
	token, err := promptToken(cmd)
	if err != nil {
		return credential.Credential{}, err
	}
	if token == "" {
		return credential.Credential{}, fmt.Errorf("a GitHub token is required: pass --token or set GH_TOKEN")
	}
	return credential.Credential{Token: token}, nil
}

func promptToken(cmd *cobra.Command) (string, error) {
	token, err := ask(cmd, "GitHub token: ")
	if err != nil {
		return "", err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return token, nil
}
