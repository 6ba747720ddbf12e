// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"code.hybscloud.com/daq/internal/logging"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]logiface.Level{
		"":        logiface.LevelInformational,
		"info":    logiface.LevelInformational,
		"DEBUG":   logiface.LevelDebug,
		"warn":    logiface.LevelWarning,
		"warning": logiface.LevelWarning,
		"error":   logiface.LevelError,
		"err":     logiface.LevelError,
		"off":     logiface.LevelDisabled,
		" trace ": logiface.LevelTrace,
	} {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := logging.ParseLevel("loud")
	require.EqualError(t, err, `logging: unknown level "loud"`)
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "warning", logging.WithoutTime())
	require.NoError(t, err)

	log.Info().Str("file", "a").Log("opened")
	log.Warning().Str("file", "b").Log("skipped")

	out := buf.String()
	require.NotContains(t, out, "opened")
	require.Equal(t, 1, strings.Count(out, "\n"), out)
	require.Contains(t, out, `"msg":"skipped"`)
	require.Contains(t, out, `"file":"b"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := logging.New(&bytes.Buffer{}, "chatty")
	require.Error(t, err)
}
