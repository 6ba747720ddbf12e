// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"code.hybscloud.com/daq/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daq.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	pc := cfg.Pipeline()
	require.Equal(t, 8192, pc.UnpackQueueSize)
	require.Equal(t, 8192, pc.RetireQueueSize)
	require.Equal(t, 4, pc.OpenQueueSize)
	require.NoError(t, pc.Validate())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
workers = 6
unpack_queue_size = 1024
print_events = true
status_interval = "250ms"
log_level = "debug"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 6, cfg.Workers)
	require.Equal(t, 1024, cfg.UnpackQueueSize)
	require.Equal(t, 8192, cfg.RetireQueueSize, "unset keys keep defaults")
	require.True(t, cfg.PrintEvents)
	require.Equal(t, 250*time.Millisecond, cfg.StatusInterval)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "workers = 2\nworkerz = 3\n")
	_, err := config.Load(path)
	require.ErrorContains(t, err, "unknown keys: workerz")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "workers = 6\nprint_events = true\nlook_ahead = 3\n")
	cfg, files, err := config.Parse("daqunpack",
		[]string{"-j", "3", "--config", path, "--data", "a.dat", "b.dat"},
		&bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, []string{"a.dat", "b.dat"}, files)
	require.Equal(t, 3, cfg.Workers, "flag wins over file")
	require.Equal(t, 3, cfg.LookAhead, "file wins over default")
	require.True(t, cfg.PrintEvents)
	require.True(t, cfg.PrintEventData)
}

func TestParseValidates(t *testing.T) {
	_, _, err := config.Parse("daqunpack", []string{"--unpack-queue", "100", "--log-level", "loud", "x"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "unpack queue size: got 100")
	require.ErrorContains(t, err, `unknown level "loud"`)
}

func TestParseHelp(t *testing.T) {
	var stderr bytes.Buffer
	_, _, err := config.Parse("daqunpack", []string{"-h"}, &stderr)
	require.ErrorIs(t, err, pflag.ErrHelp)
	require.Contains(t, stderr.String(), "usage: daqunpack [flags] file...")
	require.Contains(t, stderr.String(), "--workers")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 0
	cfg.SourceWindow = -1
	cfg.MaxRecord = -5
	err := cfg.Validate()
	require.ErrorContains(t, err, "workers: got 0")
	require.ErrorContains(t, err, "window: got -1")
	require.ErrorContains(t, err, "max record: got -5")
}
