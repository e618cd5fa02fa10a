package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"import", "extract", "validate", "resolve", "status", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "funnel-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestResolveCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"dry-run", "concurrency", "limit"} {
		flag := resolveCmd.Flags().Lookup(flagName)
		require.NotNil(t, flag, "resolve command should have --%s flag", flagName)
	}
	assert.Equal(t, "false", resolveCmd.Flags().Lookup("dry-run").DefValue)
	assert.Equal(t, "0", resolveCmd.Flags().Lookup("limit").DefValue)
}

func TestValidateCommand_Flags(t *testing.T) {
	flag := validateCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "validate command should have --limit flag")
	assert.Equal(t, "500", flag.DefValue)
}

func TestExtractCommand_Flags(t *testing.T) {
	flag := extractCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "extract command should have --limit flag")
	assert.Equal(t, "50", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestImportCommand_RequiresArgs(t *testing.T) {
	err := importCmd.Args(importCmd, nil)
	assert.Error(t, err)

	err = importCmd.Args(importCmd, []string{"export.csv"})
	assert.NoError(t, err)
}
