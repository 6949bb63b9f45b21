// Package config discovers default author identity and server credentials.
//
// Defaults come from a YAML config file —
// $ZDC_CONFIG if set, otherwise ~/.zdc.yaml —
// overridden field by field by the environment variables
// ZDC_AUTHOR, ZDC_EMAIL, ZDC_SERVER, and ZDC_KEY.
// A missing config file is not an error.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds discovered defaults.
// Empty fields simply have no default.
type Config struct {
	Author string `yaml:"author"`
	Email  string `yaml:"email"`
	Server string `yaml:"server"`
	Key    string `yaml:"key"`
}

// Load discovers defaults from the config file and the environment.
func Load() (Config, error) {
	path := os.Getenv("ZDC_CONFIG")
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".zdc.yaml")
		}
	}

	var conf Config
	if path != "" {
		c, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		conf = c
	}

	if v := os.Getenv("ZDC_AUTHOR"); v != "" {
		conf.Author = v
	}
	if v := os.Getenv("ZDC_EMAIL"); v != "" {
		conf.Email = v
	}
	if v := os.Getenv("ZDC_SERVER"); v != "" {
		conf.Server = v
	}
	if v := os.Getenv("ZDC_KEY"); v != "" {
		conf.Key = v
	}
	return conf, nil
}

func loadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config file %s", path)
	}
	var conf Config
	if err := yaml.Unmarshal(b, &conf); err != nil {
		return Config{}, errors.Wrapf(err, "decoding config file %s", path)
	}
	return conf, nil
}
