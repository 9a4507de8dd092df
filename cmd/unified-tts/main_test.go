package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/unified-tts/adapters/tts"
	"github.com/satriahrh/unified-tts/internal/auth"
	"github.com/satriahrh/unified-tts/internal/config"
)

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	flags := cmd.Flags()
	flags.StringVar(&flagHost, "host", "", "")
	flags.IntVar(&flagPort, "port", 0, "")
	flags.BoolVar(&flagCPU, "cpu", false, "")
	flags.BoolVar(&flagFP16, "fp16", false, "")
	flags.BoolVar(&flagDeepSpeed, "deepspeed", false, "")
	flags.StringVar(&flagF5TTSModelDir, "f5tts-model-dir", "", "")
	flags.StringVar(&flagIndexTTSModelDir, "indextts-model-dir", "", "")
	flags.StringVar(&flagOutputDir, "output-dir", "", "")
	return cmd
}

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cmd := testCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9000", "--cpu", "--indextts-model-dir", "/models/index"}))

	cfg := &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 7860},
		F5TTS:    tts.F5TTSConfig{ModelDir: "/models/f5"},
		IndexTTS: tts.IndexTTSConfig{ModelDir: "/workspace/index-tts/checkpoints"},
		Output:   config.OutputConfig{Dir: "/out"},
	}
	applyFlags(cmd, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Runtime.UseCPU)
	assert.True(t, cfg.F5TTS.Runtime.UseCPU)
	assert.True(t, cfg.IndexTTS.Runtime.UseCPU)
	assert.Equal(t, "/models/f5", cfg.F5TTS.ModelDir)
	assert.Equal(t, "/models/index", cfg.IndexTTS.ModelDir)
	assert.Equal(t, "/out", cfg.Output.Dir)
}

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	hashPasswordCmd.SetIn(strings.NewReader("s3cret\n"))
	hashPasswordCmd.SetOut(&out)

	require.NoError(t, hashPasswordCmd.RunE(hashPasswordCmd, nil))
	assert.Equal(t, auth.HashPassword("s3cret")+"\n", out.String())
}

func TestReadPassword(t *testing.T) {
	got, err := readPassword(strings.NewReader("pass word\r\nignored"))
	require.NoError(t, err)
	assert.Equal(t, "pass word", got)

	got, err = readPassword(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", got)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := newLogger(level)
		require.NoError(t, err, level)
		require.NotNil(t, logger)
	}

	_, err := newLogger("loud")
	assert.Error(t, err)
}

func TestMockFactories(t *testing.T) {
	logger := zaptest.NewLogger(t)

	f5, err := f5ttsFactory(tts.F5TTSConfig{URL: tts.MockURL}, logger)(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &tts.Mock{}, f5)

	index, err := indexTTSFactory(tts.IndexTTSConfig{URL: tts.MockURL}, logger)(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &tts.Mock{}, index)
}
