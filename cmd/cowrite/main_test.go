package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/cowrite/config"
	"github.com/mohammad-safakhou/cowrite/internal/materials"
)

func TestParseCommandWithoutRepair(t *testing.T) {
	t.Parallel()
	cfgPath := ""
	cmd := parseCMD(&cfgPath)
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(`Sure, here it is: {"topic": "kelp", "tags": ["a"]} hope that helps`))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--repair=false"})

	require.NoError(t, cmd.Execute())
	assert.JSONEq(t, `{"topic":"kelp","tags":["a"]}`, out.String())
}

func TestParseCommandFailsOnGarbageWithoutRepair(t *testing.T) {
	t.Parallel()
	cfgPath := ""
	cmd := parseCMD(&cfgPath)
	cmd.SetIn(strings.NewReader(`no json here`))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--repair=false"})
	assert.Error(t, cmd.Execute())
}

func TestCleanCommand(t *testing.T) {
	t.Parallel()
	docs := []materials.Document{
		{Title: "Kelp carbon uptake", URL: "https://arxiv.org/abs/1", Content: strings.Repeat("kelp stores carbon ", 4)},
		{Title: "Kelp carbon uptake", URL: "https://arxiv.org/abs/1", Content: strings.Repeat("kelp stores carbon ", 4)},
		{Title: "Tiny", Content: "x"},
	}
	raw, err := json.Marshal(docs)
	require.NoError(t, err)

	cmd := cleanCMD()
	var out, errOut bytes.Buffer
	cmd.SetIn(bytes.NewReader(raw))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--min-content-length", "10", "--min-quality", "0", "--summary"})
	require.NoError(t, cmd.Execute())

	var kept []materials.RankedDocument
	require.NoError(t, json.Unmarshal(out.Bytes(), &kept))
	require.Len(t, kept, 1)
	assert.Equal(t, "Kelp carbon uptake", kept[0].Title)
	assert.Equal(t, "kept 1 of 3 documents\n", errOut.String())
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	l, err := newLogger(config.LogConfig{Level: "debug", Format: "console"}, "cowrite")
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = newLogger(config.LogConfig{Level: "loud", Format: "json"}, "")
	assert.Error(t, err)
}
