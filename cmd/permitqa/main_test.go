package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, secretsPath, verbose = "", "", false
	ingestIDColumn, ingestTextColumns, ingestSheet, ingestQueue = "", nil, "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
		require.NotEmpty(t, cmd.Short, cmd.Name())
	}
	for _, want := range []string{"ask", "ingest", "ping"} {
		require.True(t, names[want], "missing command %s", want)
	}
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("secrets"))
	require.NotNil(t, ingestCmd.Flags().Lookup("id-column"))
	require.NotNil(t, ingestCmd.Flags().Lookup("queue"))
}

func TestIngestThenAskWithPersistentStore(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "store_provider: chromem\nchromem_path: "+filepath.Join(dir, "store")+"\n")
	secrets := writeFile(t, dir, "secrets.toml", "")
	csv := writeFile(t, dir, "permits.csv",
		"Permit Number,Type,Status\n"+
			"A1157640,Amendment from long-form to short-form,Approved\n"+
			"B234567,Timeline extension for construction,Pending\n")

	out, err := executeCommand(t, "ingest", "--config", cfg, "--secrets", secrets, "--id-column", "Permit Number", csv)
	require.NoError(t, err)
	require.Contains(t, out, "stored 2 documents")

	out, err = executeCommand(t, "ask", "--config", cfg, "--secrets", secrets, "Which permit got a timeline extension?")
	require.NoError(t, err)
	require.Contains(t, out, "Sources:")
	require.Contains(t, out, "B234567")
}

func TestIngestRejectsUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "permits.json", "{}")

	_, err := executeCommand(t, "ingest", path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported file type")
}

func TestPingReportsSecretsWithoutValues(t *testing.T) {
	dir := t.TempDir()
	secrets := writeFile(t, dir, "secrets.toml", "chat_api_key = \"sk-test-123456789\"\n")

	out, err := executeCommand(t, "ping", "--secrets", secrets)
	require.NoError(t, err)
	require.Contains(t, out, "chat_api_key")
	require.Contains(t, out, "sk-te...")
	require.NotContains(t, out, "sk-test-123456789")
	require.Contains(t, out, "store")
	require.Contains(t, out, "ok")
}
