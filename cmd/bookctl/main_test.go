package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bookctl dev")
}

func TestTokenIssueCmd(t *testing.T) {
	path := writeConfig(t, `
http:
  public_base_url: https://api.example.com/
one_tap:
  secret: s3cret
`)

	out, err := runCmd(t, "--config", path, "token", "issue", "VCP-ABCD1234")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "https://api.example.com/api/one-tap-reschedule?token="))

	code, err := token.NewService("s3cret", time.Hour).Verify(lines[0], token.ActionOneTapReschedule)
	require.NoError(t, err)
	assert.Equal(t, "VCP-ABCD1234", code)
}

func TestTokenIssueCmdRequiresCode(t *testing.T) {
	_, err := runCmd(t, "token", "issue")
	assert.Error(t, err)
}

func TestAvailabilityCmdRequiresDate(t *testing.T) {
	_, err := runCmd(t, "availability")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date")
}
