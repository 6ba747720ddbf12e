// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"code.hybscloud.com/daq"
	"code.hybscloud.com/daq/internal/recordfile"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, dir, name string, n int) string {
	t.Helper()
	var buf bytes.Buffer
	w := recordfile.NewWriter(&buf)
	for i := range n {
		_, err := w.Write(recordfile.AppendSubevent(nil, 0x10, []byte{byte(i)}))
		require.NoError(t, err)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestRunPrintsEventsInOrder(t *testing.T) {
	if daq.RaceEnabled {
		t.Skip("skip: stages hand slots over through atomix counters")
	}
	dir := t.TempDir()
	a := writeRecords(t, dir, "a.dat", 50)
	b := writeRecords(t, dir, "b.dat", 20)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"-j", "4", "--unpack-queue", "8", "--retire-queue", "8", "--print", "--status", "0", "--log-level", "warning", a, b},
		&stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	require.Empty(t, stderr.String())

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 70)
	require.Equal(t, "event 1 size=5 subevents=1", lines[0])
	require.Equal(t, "event 50 size=5 subevents=1", lines[49])
	require.Equal(t, "event 1 size=5 subevents=1", lines[50])
	require.Equal(t, "event 20 size=5 subevents=1", lines[69])
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, exitUsage, run(context.Background(), nil, &stdout, &stderr))
	require.Contains(t, stderr.String(), "no input files")

	stderr.Reset()
	require.Equal(t, exitUsage, run(context.Background(), []string{"--workers", "0", "x.dat"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "workers: got 0")

	stderr.Reset()
	require.Equal(t, exitOK, run(context.Background(), []string{"--help"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "usage: daqunpack")
}

func TestRunFatalOpenError(t *testing.T) {
	if daq.RaceEnabled {
		t.Skip("skip: stages hand slots over through atomix counters")
	}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"--io-error-fatal", "--status", "0", filepath.Join(t.TempDir(), "missing.dat")},
		&stdout, &stderr)
	require.Equal(t, exitError, code)
	require.Contains(t, stderr.String(), "daqunpack failed")
}
