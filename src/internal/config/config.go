package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
)

// LoadConfig reads the TOML file at configPath on top of DefaultConfig, so
// omitted settings keep their defaults. A missing file yields an error
// matching fs.ErrNotExist.
func LoadConfig(configPath string) (*Config, error) {
	configFile, err := absPath(configPath)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewConfigError(fmt.Sprintf("configuration file not found: %s", configFile), err)
		}
		return nil, apperrors.NewConfigError("failed to read config file", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(content, config); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			log.Errorf("%s", derr.String())
			row, col := derr.Position()
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to parse config file at line %d, column %d", row, col), err)
		}
		return nil, apperrors.NewConfigError("failed to parse config file", err)
	}

	config._absConfigFilePath = configFile
	config.fillMissingSections()

	log.Debugf("Configuration file path: %s", configFile)
	log.Debugf("Rule file: %s", config.GetAbsRulesFile())

	return config, nil
}

// LoadOrDefault loads configPath. If the file does not exist and explicit is
// false, the defaults are returned with paths resolved against configPath's
// directory.
func LoadOrDefault(configPath string, explicit bool) (*Config, error) {
	config, err := LoadConfig(configPath)
	if err == nil || explicit || !errors.Is(err, fs.ErrNotExist) {
		return config, err
	}

	configFile, err := absPath(configPath)
	if err != nil {
		return nil, err
	}
	log.Debugf("Configuration file %s not found, using defaults", configFile)

	config = DefaultConfig()
	config._absConfigFilePath = configFile
	return config, nil
}

func absPath(configPath string) (string, error) {
	configFile := filepath.Clean(configPath)
	if filepath.IsAbs(configFile) {
		return configFile, nil
	}
	path, err := filepath.Abs(configFile)
	if err != nil {
		return "", apperrors.NewConfigError("failed to get absolute path", err)
	}
	return path, nil
}

// fillMissingSections replaces sections explicitly emptied by the file.
func (c *Config) fillMissingSections() {
	defaults := DefaultConfig()
	if c.General == nil {
		c.General = defaults.General
	}
	if c.Capture == nil {
		c.Capture = defaults.Capture
	}
	if c.Dnstap == nil {
		c.Dnstap = defaults.Dnstap
	}
	if c.API == nil {
		c.API = defaults.API
	}
}

// SerializeConfig renders the configuration as TOML.
func (c *Config) SerializeConfig() (*bytes.Buffer, error) {
	buf := bytes.Buffer{}
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return &buf, nil
}
