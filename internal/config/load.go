package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/conn-castle/alpine-term/internal/messages"
)

// ErrConfigValidation is a sentinel that wraps config validation failures
// (as opposed to TOML syntax or filesystem errors).
var ErrConfigValidation = errors.New("config validation failed")

var readFileFn = os.ReadFile

// Load reads the config file at path, applies defaults, resolves layout-dependent
// values, and validates the result. A missing file yields the defaults.
func Load(path string, paths Paths) (*Config, error) {
	data, err := readFileFn(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf(messages.ConfigMissingFileFmt, path, err)
		}
		data = nil
	}
	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	cfg.Resolve(paths)
	return cfg, nil
}

// ParseConfig decodes TOML on top of Default and validates it.
// data is the TOML content; source is used in error messages.
func ParseConfig(data []byte, source string) (*Config, error) {
	cfg := Default()
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: "+messages.ConfigUnrecognizedKeysFmt+" "+messages.ConfigValidationGuidance, ErrConfigValidation, source, strict.String())
		}
		return nil, fmt.Errorf(messages.ConfigInvalidConfigFmt, source, err)
	}
	if err := cfg.Validate(source); err != nil {
		return nil, fmt.Errorf("%w: %w "+messages.ConfigValidationGuidance, ErrConfigValidation, err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	targets := []struct {
		name  string
		value *string
	}{
		{"environment.assets_dir", &c.Environment.AssetsDir},
		{"environment.bin_dir", &c.Environment.BinDir},
		{"qemu.hdd1_path", &c.QEMU.HDD1Path},
		{"qemu.hdd2_path", &c.QEMU.HDD2Path},
		{"qemu.cdrom_path", &c.QEMU.CDROMPath},
	}
	for _, target := range targets {
		expanded, err := ExpandPath(target.name, *target.value)
		if err != nil {
			return err
		}
		*target.value = expanded
	}
	return nil
}
