// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgs_ConfigPathOnly(t *testing.T) {
	args, err := parseArgs([]string{"config.yaml"})
	require.NoError(t, err)
	require.Equal(t, "config.yaml", args.configPath)
	require.Equal(t, 0, args.debugCount)
	require.False(t, args.syslog)
	require.Empty(t, args.logFile)
}

func TestParseArgs_DebugFlags(t *testing.T) {
	args, err := parseArgs([]string{"-d", "config.yaml"})
	require.NoError(t, err)
	require.Equal(t, 1, args.debugCount)

	args, err = parseArgs([]string{"-dd", "config.yaml"})
	require.NoError(t, err)
	require.Equal(t, 2, args.debugCount)
}

func TestParseArgs_LogFile(t *testing.T) {
	args, err := parseArgs([]string{"-l", "/var/log/kitero.log", "config.yaml"})
	require.NoError(t, err)
	require.Equal(t, "/var/log/kitero.log", args.logFile)
}

func TestParseArgs_LogFileMissingArgument(t *testing.T) {
	_, err := parseArgs([]string{"-l"})
	require.Error(t, err)
}

func TestParseArgs_Syslog(t *testing.T) {
	args, err := parseArgs([]string{"-s", "config.yaml"})
	require.NoError(t, err)
	require.True(t, args.syslog)
}

func TestParseArgs_MissingConfigPath(t *testing.T) {
	_, err := parseArgs([]string{"-d"})
	require.Error(t, err)
}

func TestParseArgs_UnknownFlag(t *testing.T) {
	_, err := parseArgs([]string{"-x", "config.yaml"})
	require.Error(t, err)
}

func TestParseArgs_ExtraPositionalArgument(t *testing.T) {
	_, err := parseArgs([]string{"config.yaml", "extra.yaml"})
	require.Error(t, err)
}

func TestParseArgs_CombinedFlags(t *testing.T) {
	args, err := parseArgs([]string{"-d", "-l", "kitero.log", "-s", "config.yaml"})
	require.NoError(t, err)
	require.Equal(t, 1, args.debugCount)
	require.Equal(t, "kitero.log", args.logFile)
	require.True(t, args.syslog)
	require.Equal(t, "config.yaml", args.configPath)
}
