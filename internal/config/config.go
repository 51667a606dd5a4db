// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package config // import "openpodcast.dev/forwarder/internal/config"

// Opts holds parsed configuration options.
var Opts *Options

// Load loads configuration values from a local file (if filename isn't empty)
// and from environment variables after that.
func Load(filename string) error { return LoadYAML("", filename) }

// LoadYAML loads configuration values from a YAML file (if yamlName isn't
// empty), next from a local .env file (if envName isn't empty) and from
// environment variables after that.
func LoadYAML(yamlName, envName string) error {
	cfg := NewParser()
	if yamlName != "" {
		if err := cfg.ParseYAML(yamlName); err != nil {
			return err
		}
	}

	var opts *Options
	var err error
	if envName != "" {
		opts, err = cfg.ParseEnvFile(envName)
	} else {
		opts, err = cfg.ParseEnvironmentVariables()
	}
	if err != nil {
		return err
	}
	Opts = opts
	return nil
}
