// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package locations knows where the per user configuration lives on each
// platform.
package locations

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appDir     = "rdds"
	configFile = "config.yaml"
)

// ConfigDir returns the default configuration directory, as figured out by
// the environment variables present on each platform.
func ConfigDir() string {
	return configDir(runtime.GOOS, os.Getenv, userHome())
}

// ConfigFile returns the path of the default node configuration file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), configFile)
}

// DefaultConfigFile returns the default configuration file if it exists.
func DefaultConfigFile() (string, bool) {
	path := ConfigFile()
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func configDir(goos string, getenv func(string) string, home string) string {
	switch goos {
	case "windows":
		if p := getenv("LocalAppData"); p != "" {
			return filepath.Join(p, appDir)
		}
		return filepath.Join(getenv("AppData"), appDir)

	case "darwin":
		return filepath.Join(home, "Library/Application Support", appDir)

	default:
		if xdgCfg := getenv("XDG_CONFIG_HOME"); xdgCfg != "" {
			return filepath.Join(xdgCfg, appDir)
		}
		return filepath.Join(home, ".config", appDir)
	}
}

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
