package config

import (
	"gopkg.in/yaml.v3"

	"github.com/overture-dev/overture/internal/errors"
)

// RenderYAML serializes a Config to YAML, suitable for writing the initial
// config file during `overture init`.
func RenderYAML(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.ErrConfigNil
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render config")
	}
	return out, nil
}
