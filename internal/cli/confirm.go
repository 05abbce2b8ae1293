package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	line, err := ask(cmd, prompt)
	if err != nil {
		return false, err
	}
	resp := strings.ToLower(line)
	return resp == "y" || resp == "yes", nil
}

// ask prints prompt and returns one trimmed line of input. EOF counts as an
// empty answer.
func ask(cmd *cobra.Command, prompt string) (string, error) {
	if _, err := fmt.Fprint(cmd.OutOrStdout(), prompt); err != nil {
		return "", err
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
