package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture-extractor/src/config"
)

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	err := cmd.ParseFlags([]string{
		"--env", "/tmp/x.env", "--csv", "out.csv", "--model", "llava", "--host", "http://gpu:11434",
		"--mode", "profile", "--skip-ping", "--hidden",
	})
	require.NoError(t, err)

	assert.True(t, opts.skipPing)
	assert.True(t, opts.hidden)
	assert.Equal(t, config.LoadOptions{
		EnvPath:    "/tmp/x.env",
		CSVPath:    "out.csv",
		Model:      "llava",
		OllamaHost: "http://gpu:11434",
		ResultMode: "profile",
	}, opts.loadOptions())
}

func TestNewRootCmdRejectsArgs(t *testing.T) {
	cmd := newRootCmd(&mainOptions{})
	cmd.SetArgs([]string{"unexpected"})
	assert.Error(t, cmd.Execute())
}

func TestReadyMessage(t *testing.T) {
	cfg := &config.Config{CSVPath: "/d/c.csv", Model: "m", Hotkey: "Ctrl+Alt+E"}
	assert.Equal(t, "Ready. Saving to /d/c.csv with m. Ctrl+Alt+E captures.", readyMessage(cfg))

	cfg.Hotkey = ""
	assert.Equal(t, "Ready. Saving to /d/c.csv with m.", readyMessage(cfg))
}
