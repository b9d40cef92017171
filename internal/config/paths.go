package config

import (
	"os"
	"path/filepath"

	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/errors"
)

// GlobalConfigDir returns the path to the global Overture configuration directory.
// This is typically ~/.overture on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.OvertureHome), nil
}

// GlobalConfigPath returns the full path to the global configuration file.
// This is typically ~/.overture/config.yaml on Unix systems.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .overture/config.yaml relative to the working directory.
func ProjectConfigPath() string {
	return filepath.Join(constants.ProjectConfigDir, constants.GlobalConfigName)
}
