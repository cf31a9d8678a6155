package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "propd.toml")
	contents := fmt.Sprintf(`DataDir = %q
StorageBackend = "bolt"
EscrowVault = "0x000000000000000000000000000000000000e5c0"
`, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBankCommandsPersistAcrossInvocations(t *testing.T) {
	cfg := writeConfig(t)

	_, err := runCLI(t, "--config", cfg, "bank", "deposit", "--account", alice, "--amount", "500")
	require.NoError(t, err)
	_, err = runCLI(t, "--config", cfg, "--as", alice, "bank", "transfer", "--to", bob, "--amount", "120")
	require.NoError(t, err)

	out, err := runCLI(t, "--config", cfg, "bank", "balance", "--account", bob)
	require.NoError(t, err)
	var bal map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &bal))
	require.Equal(t, "120", bal["balance"])
}

func TestPropertyRegisterAndEvents(t *testing.T) {
	cfg := writeConfig(t)

	out, err := runCLI(t, "--config", cfg, "--as", alice, "property", "register", "--price", "900")
	require.NoError(t, err)
	var prop struct {
		ID      string
		ForSale bool
	}
	require.NoError(t, json.Unmarshal([]byte(out), &prop))
	require.True(t, strings.HasPrefix(prop.ID, "0x"))

	_, err = runCLI(t, "--config", cfg, "--as", bob, "property", "list", "--id", prop.ID, "--price", "1000")
	require.ErrorContains(t, err, "unauthorized")

	_, err = runCLI(t, "--config", cfg, "--as", alice, "property", "list-dynamic", "--id", prop.ID, "--demand", "150", "--base-price", "500")
	require.NoError(t, err)

	out, err = runCLI(t, "--config", cfg, "events", "--property", prop.ID)
	require.NoError(t, err)
	require.Contains(t, out, "ownership.registered")
	require.Contains(t, out, "ownership.listed")
	require.Contains(t, out, `"price": "1000"`)
}

func TestCallerRequired(t *testing.T) {
	cfg := writeConfig(t)
	_, err := runCLI(t, "--config", cfg, "property", "register")
	require.ErrorContains(t, err, "--as is required")
}

func TestEventsVerifyAndExport(t *testing.T) {
	cfg := writeConfig(t)
	_, err := runCLI(t, "--config", cfg, "bank", "deposit", "--account", alice, "--amount", "50")
	require.NoError(t, err)
	_, err = runCLI(t, "--config", cfg, "--as", alice, "property", "register", "--price", "10")
	require.NoError(t, err)

	out, err := runCLI(t, "--config", cfg, "events", "verify")
	require.NoError(t, err)
	var verified map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &verified))
	require.Positive(t, verified["verified"])

	_, err = runCLI(t, "--config", cfg, "events", "export")
	require.ErrorContains(t, err, "--out is required")

	dest := filepath.Join(t.TempDir(), "events.parquet")
	_, err = runCLI(t, "--config", cfg, "events", "export", "--out", dest, "--type", "ownership.registered")
	require.NoError(t, err)
	info, err := os.Stat(dest)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}
