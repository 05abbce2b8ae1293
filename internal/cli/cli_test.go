package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/brianndofor/cloudguard/internal/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixedNow = "2026-02-04T00:00:00Z"

func repoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func execRoot(stdin string, args ...string) (string, error) {
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	output, err := execRoot("", args...)
	if err != nil {
		t.Fatalf("command failed: %v\n%s", err, output)
	}
	return output
}

func withMockEnv(t *testing.T) {
	t.Helper()
	root := repoRoot()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GH_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("CLOUDGUARD_MOCK", "1")
	t.Setenv("CLOUDGUARD_MOCK_DIR", filepath.Join(root, "testdata", "gh"))
	t.Setenv("CLOUDGUARD_GENERATOR_FIXTURES", filepath.Join(root, "testdata", "generator"))
	t.Setenv("CLOUDGUARD_DB_PATH", filepath.Join(t.TempDir(), "cloudguard.db"))
	t.Setenv("CLOUDGUARD_NOW", fixedNow)
}

// withGHOverrides copies the gh fixtures and replaces the named files.
func withGHOverrides(t *testing.T, overrides map[string]string) {
	t.Helper()
	src := filepath.Join(repoRoot(), "testdata", "gh")
	dst := t.TempDir()
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(src, entry.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, entry.Name()), data, 0o644))
	}
	for name, content := range overrides {
		require.NoError(t, os.WriteFile(filepath.Join(dst, name), []byte(content), 0o644))
	}
	t.Setenv("CLOUDGUARD_MOCK_DIR", dst)
}

func pushService(t *testing.T) {
	t.Helper()
	runRoot(t, "generate", "AWS S3 Bucket")
	output := runRoot(t, "push", "AWS S3 Bucket", "--repo", "acme/security-controls", "--token", "ghp_test", "--yes")
	require.Contains(t, output, "Opened https://github.com/acme/security-controls/pull/42")
}

func storedContexts(t *testing.T) []store.ReviewContext {
	t.Helper()
	var contexts []store.ReviewContext
	require.NoError(t, json.Unmarshal([]byte(runRoot(t, "status", "--json")), &contexts))
	return contexts
}

func TestGenerateCommand(t *testing.T) {
	withMockEnv(t)
	output := runRoot(t, "generate", "AWS", "S3", "Bucket")
	assert.Contains(t, output, "AWS S3 Bucket: 4 controls")
	assert.Contains(t, output, "Control Plane (3)")
	assert.Contains(t, output, "Data Plane (1)")
	assert.Contains(t, output, "Mapping: CIS AWS v3.0 2.1.1 | NIST Rev5 SC-28")
}

func TestGenerateCommandCSV(t *testing.T) {
	withMockEnv(t)
	output := runRoot(t, "generate", "AWS S3 Bucket", "--format", "csv")
	records, err := csv.NewReader(strings.NewReader(output)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "Data Plane", records[4][3])
}

func TestGeneratePolicyRejection(t *testing.T) {
	withMockEnv(t)
	t.Setenv("CLOUDGUARD_GENERATOR_FIXTURES", filepath.Join(repoRoot(), "testdata", "generator", "rejected"))

	_, err := execRoot("", "generate", "banana bread")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(ErrorMessage(err), "policy rejected: Only cloud services"))

	_, err = execRoot("", "push", "banana bread", "--repo", "acme/security-controls", "--token", "t", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run generate first")
}

func TestPushAndStatus(t *testing.T) {
	withMockEnv(t)
	pushService(t)

	contexts := storedContexts(t)
	require.Len(t, contexts, 1)
	rc := contexts[0]
	assert.Equal(t, "AWS S3 Bucket", rc.ServiceName)
	assert.Equal(t, store.StatusOpen, rc.Status)
	assert.Equal(t, "42", rc.ProposalID)
	assert.Equal(t, "acme", rc.RepoOwner)
	assert.Equal(t, "security-controls", rc.RepoName)
	assert.True(t, strings.HasPrefix(rc.BranchName, "cloudguard/aws-s3-bucket-"))
	assert.Len(t, rc.Controls, 4)

	table := runRoot(t, "status")
	assert.Contains(t, table, "acme/security-controls#42")
	assert.Contains(t, table, "OPEN")

	_, err := execRoot("", "push", "AWS S3 Bucket", "--repo", "acme/security-controls", "--token", "t", "--yes")
	require.Error(t, err, "draft is consumed by a successful push")
}

func TestPushWhileOpenNeedsForce(t *testing.T) {
	withMockEnv(t)
	pushService(t)
	runRoot(t, "generate", "AWS S3 Bucket")

	_, err := execRoot("", "push", "AWS S3 Bucket", "--repo", "acme/security-controls", "--token", "t", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open proposal")
	assert.Contains(t, err.Error(), "--force")

	output := runRoot(t, "push", "AWS S3 Bucket", "--repo", "acme/security-controls", "--token", "t", "--yes", "--force")
	assert.Contains(t, output, "Opened https://github.com/acme/security-controls/pull/42")
	require.Len(t, storedContexts(t), 1)
}

func TestPushDeclined(t *testing.T) {
	withMockEnv(t)
	runRoot(t, "generate", "AWS S3 Bucket")
	output, err := execRoot("n\n", "push", "AWS S3 Bucket", "--repo", "acme/security-controls", "--token", "t")
	require.NoError(t, err)
	assert.Contains(t, output, "Aborted.")
	assert.Contains(t, runRoot(t, "status"), "No review contexts stored.")
}

func TestPushRequiresRepository(t *testing.T) {
	withMockEnv(t)
	runRoot(t, "generate", "AWS S3 Bucket")
	_, err := execRoot("", "push", "AWS S3 Bucket", "--token", "t", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--repo")
}

func TestPushWithoutTokenFails(t *testing.T) {
	withMockEnv(t)
	runRoot(t, "generate", "AWS S3 Bucket")
	_, err := execRoot("", "push", "AWS S3 Bucket", "--repo", "acme/security-controls", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token")
}

func TestSyncWithoutChangesIsNoop(t *testing.T) {
	withMockEnv(t)
	pushService(t)
	output := runRoot(t, "sync", "AWS S3 Bucket", "--token", "t")
	assert.Contains(t, output, "AWS S3 Bucket: no changes (OPEN)")
}

func TestSyncOutcomes(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]string
		want      string
		status    store.Status
	}{
		{
			name:      "feedback on open proposal",
			overrides: map[string]string{"issue_comments.json": `[{"user":{"login":"bob"},"body":"Add a control for access logging.","created_at":"2026-02-05T09:00:00Z"}]`},
			want:      "feedback applied to the open proposal (OPEN)",
			status:    store.StatusOpen,
		},
		{
			name:      "closed without feedback",
			overrides: map[string]string{"pull.json": `{"number":42,"state":"closed","merged":false}`},
			want:      "closed proposal re-opened as a new proposal (OPEN)",
			status:    store.StatusOpen,
		},
		{
			name:      "merged",
			overrides: map[string]string{"pull.json": `{"number":42,"state":"closed","merged":true}`},
			want:      "proposal merged (MERGED)",
			status:    store.StatusMerged,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withMockEnv(t)
			pushService(t)
			withGHOverrides(t, tc.overrides)

			output := runRoot(t, "sync", "AWS S3 Bucket", "--token", "t")
			assert.Contains(t, output, tc.want)
			contexts := storedContexts(t)
			require.Len(t, contexts, 1)
			assert.Equal(t, tc.status, contexts[0].Status)
		})
	}
}

func TestSyncAllJSON(t *testing.T) {
	withMockEnv(t)
	pushService(t)
	output := runRoot(t, "sync", "--all", "--json", "--token", "t")
	var reports []syncReport
	require.NoError(t, json.Unmarshal([]byte(output), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "none", reports[0].Action)
	assert.Equal(t, "OPEN", reports[0].Status)
}

func TestSyncUnknownService(t *testing.T) {
	withMockEnv(t)
	_, err := execRoot("", "sync", "Azure Key Vault", "--token", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no review context")
}

func TestExportCommand(t *testing.T) {
	withMockEnv(t)
	pushService(t)
	out := filepath.Join(t.TempDir(), "controls.csv")
	output := runRoot(t, "export", "AWS S3 Bucket", "--out", out)
	assert.Contains(t, output, "Wrote 4 controls")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Control ID,Control Name,Control Description,Plane,Mapping\n"))
}

func TestTerraformCommand(t *testing.T) {
	withMockEnv(t)
	runRoot(t, "generate", "AWS S3 Bucket")
	output := runRoot(t, "terraform", "AWS S3 Bucket", "--out", "-")
	assert.Contains(t, output, `resource "aws_s3_bucket_public_access_block" "this"`)
}

func TestDoctorCommand(t *testing.T) {
	withMockEnv(t)
	output := runRoot(t, "doctor")
	assert.Contains(t, output, "doctor checks passed")
}

func TestSessionPromptsForTokenOnce(t *testing.T) {
	withMockEnv(t)
	pushService(t)

	app, err := initApp("", &bytes.Buffer{})
	require.NoError(t, err)
	defer app.Store.Close()

	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader("ghp_session\n"))
	cmd.SetContext(context.Background())

	actions := []string{"sync", "sync", "quit"}
	var notices []string
	picker := func(items []store.ReviewContext, notice string) (sessionResult, error) {
		notices = append(notices, notice)
		action := actions[0]
		actions = actions[1:]
		return sessionResult{Item: items[0], Action: action}, nil
	}
	require.NoError(t, runSession(cmd, app, picker))

	assert.Equal(t, 1, strings.Count(out.String(), "GitHub token:"))
	require.Len(t, notices, 3)
	assert.Equal(t, "AWS S3 Bucket: no changes (OPEN)", notices[2])
	cred, ok := app.Credentials.Get()
	require.True(t, ok)
	assert.Equal(t, "ghp_session", cred.Token)
}

func TestSessionOpenAction(t *testing.T) {
	withMockEnv(t)
	pushService(t)
	app, err := initApp("", &bytes.Buffer{})
	require.NoError(t, err)
	defer app.Store.Close()

	rc, ok, err := app.Store.Get("aws s3 bucket")
	require.NoError(t, err)
	require.True(t, ok)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	notice, err := runSessionAction(cmd, app, rc, "open")
	require.NoError(t, err)
	assert.Contains(t, notice, "opened https://github.com/acme/security-controls/pull/42")
	fake, ok := app.Exec.(*FakeExecRunner)
	require.True(t, ok)
	assert.Equal(t, []string{"gh browse --repo acme/security-controls 42"}, fake.Commands)
}

func TestSessionModelChoosesAction(t *testing.T) {
	items := []store.ReviewContext{
		{ServiceName: "AWS S3 Bucket", Status: store.StatusOpen, RepoOwner: "acme", RepoName: "controls", ProposalID: "42"},
		{ServiceName: "Azure Key Vault", Status: store.StatusMerged, RepoOwner: "acme", RepoName: "controls", ProposalID: "7"},
	}
	var model tea.Model = newSessionModel(items, "")
	model, _ = model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, sessionModeAction, model.(sessionModel).mode)

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	require.NotNil(t, cmd)
	result := model.(sessionModel).result
	assert.Equal(t, "terraform", result.Action)
	assert.Equal(t, "AWS S3 Bucket", result.Item.ServiceName)
}

func TestSessionModelFilters(t *testing.T) {
	items := []store.ReviewContext{
		{ServiceName: "AWS S3 Bucket"},
		{ServiceName: "Azure Key Vault"},
	}
	model := newSessionModel(items, "")
	model.search.SetValue("vault")
	model.applyFilter()
	require.Len(t, model.list.Items(), 1)
	assert.Equal(t, "Azure Key Vault", model.list.Items()[0].(contextItem).rc.ServiceName)
}
