package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand_PrintsResolvedConfig(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "--device", "emulator"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "emulator: true")
	assert.Contains(t, out.String(), "shutdown_timeout: 5s")
}

func TestConfigCommand_UnknownDevice(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"config", "--device", "nope"})
	assert.Error(t, rootCmd.Execute())
}
