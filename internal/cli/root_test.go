// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sgdmf/internal/factorization"
	"github.com/tomtom215/sgdmf/internal/storage"
)

// testEnv is a temporary config file, interaction log and model store.
type testEnv struct {
	configPath string
	dataPath   string
	storePath  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	env := &testEnv{
		configPath: filepath.Join(dir, "sgdmf.yaml"),
		dataPath:   filepath.Join(dir, "ratings.csv"),
		storePath:  filepath.Join(dir, "models"),
	}

	var data strings.Builder
	for u := 0; u < 10; u++ {
		for i := 0; i < 6; i++ {
			fmt.Fprintf(&data, "%d,%d,%d\n", u, i, 1+u%3+i%2)
		}
	}
	require.NoError(t, os.WriteFile(env.dataPath, []byte(data.String()), 0o600))

	config := fmt.Sprintf(`logging:
  level: error
model:
  epochs: 20
  factors: 2
  lambda: 0.01
  learning_rate: 0.05
  seed: 7
  progress_interval: 0
data:
  path: %s
store:
  path: %s
  keep_versions: 2
`, env.dataPath, env.storePath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(config), 0o600))

	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runContext(context.Background(), args...)
}

func (e *testEnv) runContext(ctx context.Context, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "sgdmf", cmd.Use)
	assert.Contains(t, cmd.Long, "stochastic gradient descent")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"train", "evaluate", "predict", "models", "serve"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "", configFlag.DefValue)

	for _, name := range []string{"log-level", "log-format", "store", "model"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s", name)
	}
}

func TestPredictCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	predictCmd, _, err := cmd.Find([]string{"predict"})
	require.NoError(t, err)

	userFlag := predictCmd.Flags().Lookup("user")
	require.NotNil(t, userFlag)
	assert.Equal(t, "u", userFlag.Shorthand)

	itemFlag := predictCmd.Flags().Lookup("item")
	require.NotNil(t, itemFlag)
	assert.Equal(t, "i", itemFlag.Shorthand)
}

func TestTrainEvaluatePredict(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "train")
	require.NoError(t, err)
	assert.Contains(t, out, "observations: 60 users: 10 items: 6")
	assert.Contains(t, out, "mse: ")
	assert.Contains(t, out, "saved model default version 1")

	out, err = env.run(t, "evaluate", "--print")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 61)
	assert.True(t, strings.HasPrefix(lines[60], "mse: "))

	mse, err := strconv.ParseFloat(strings.TrimPrefix(lines[60], "mse: "), 64)
	require.NoError(t, err)
	assert.Less(t, mse, 1.0)

	out, err = env.run(t, "predict", "--user", "0", "--item", "0")
	require.NoError(t, err)
	value, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	require.NoError(t, err)
	assert.Greater(t, value, 0.0)
	assert.Less(t, value, 5.0)

	out, err = env.run(t, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "default")
}

func TestTrainNoSave(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "train", "--no-save", "--epochs", "5", "--sampling", "shuffle")
	require.NoError(t, err)
	assert.Contains(t, out, "mse: ")
	assert.NotContains(t, out, "saved model")

	_, err = env.run(t, "predict", "--user", "0", "--item", "0")
	require.ErrorIs(t, err, storage.ErrModelNotFound)
}

func TestTrainPrunesOldVersions(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		_, err := env.run(t, "train", "--epochs", "2")
		require.NoError(t, err)
	}

	out, err := env.run(t, "models", "--all")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3, "header plus two kept versions")

	_, err = env.run(t, "predict", "--user", "0", "--item", "0", "--version", "1")
	require.ErrorIs(t, err, storage.ErrModelNotFound)
}

func TestTrainNamedModel(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "--model", "alt", "train", "--epochs", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "saved model alt version 1")

	_, err = env.run(t, "predict", "--user", "0", "--item", "0")
	require.ErrorIs(t, err, storage.ErrModelNotFound)

	_, err = env.run(t, "--model", "alt", "predict", "--user", "0", "--item", "0")
	require.NoError(t, err)
}

func TestTrainWhileServing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "train", "--epochs", "2")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := env.runContext(ctx, "serve", "--port", "0")
		done <- err
	}()
	time.Sleep(200 * time.Millisecond)

	out, err := env.run(t, "train", "--epochs", "2")
	require.NoError(t, err, "train must be able to open the store while serve runs")
	assert.Contains(t, out, "saved model default version 2")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestEvaluateSkipsOutOfRange(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "train", "--epochs", "2")
	require.NoError(t, err)

	evalPath := filepath.Join(filepath.Dir(env.dataPath), "eval.csv")
	require.NoError(t, os.WriteFile(evalPath, []byte("0,0,1\n99,0,3\n1,5,3\n"), 0o600))

	out, err := env.run(t, "evaluate", "--data", evalPath, "--print")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3, "two evaluated records plus the mse line")
}

func TestEvaluateLimit(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "train", "--epochs", "2")
	require.NoError(t, err)

	out, err := env.run(t, "evaluate", "--print", "--limit", "5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 6)
}

func TestEvaluateLimitCountsEvaluatedRecords(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "train", "--epochs", "2")
	require.NoError(t, err)

	evalPath := filepath.Join(filepath.Dir(env.dataPath), "eval.csv")
	require.NoError(t, os.WriteFile(evalPath, []byte("99,0,3\n0,0,1\n98,1,1\n1,5,3\n2,2,2\n"), 0o600))

	out, err := env.run(t, "evaluate", "--data", evalPath, "--print", "--limit", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, "two in-range records plus the mse line")
	assert.True(t, strings.HasPrefix(lines[0], "1 "))
	assert.True(t, strings.HasPrefix(lines[1], "3 "))
}

func TestPredictOutOfRange(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "train", "--epochs", "2")
	require.NoError(t, err)

	_, err = env.run(t, "predict", "--user", "10", "--item", "0")
	require.ErrorIs(t, err, factorization.ErrOutOfRange)
}

func TestCommandErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing data file", args: []string{"train", "--data", "/nonexistent/ratings.csv"}, wantErr: "no such file"},
		{name: "invalid log level", args: []string{"--log-level", "loud", "models"}, wantErr: "invalid log level"},
		{name: "invalid log format", args: []string{"--log-format", "xml", "models"}, wantErr: "invalid log format"},
		{name: "invalid model name", args: []string{"--model", "a/b", "models"}, wantErr: "invalid model name"},
		{name: "invalid sampling", args: []string{"train", "--sampling", "random", "--no-save"}, wantErr: "Sampling"},
		{name: "predict requires user", args: []string{"predict", "--item", "0"}, wantErr: "user"},
		{name: "evaluate without model", args: []string{"evaluate"}, wantErr: "model not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
