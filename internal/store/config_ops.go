package store

import (
	"context"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/errs"
)

// ReadConfig returns the project's effective configuration (spec.md
// §6.2 "read_config").
func (s *Store) ReadConfig() (config.Config, error) {
	return s.LoadConfig()
}

// SetProjectCode updates config.json's project_code, used as the short
// ID prefix for newly created tasks (spec.md §4.2 "Short IDs").
func (s *Store) SetProjectCode(ctx context.Context, code string) (config.Config, error) {
	if code == "" {
		return config.Config{}, errs.New(errs.ValidationError, "project_code must not be empty")
	}
	cfg, err := s.LoadConfig()
	if err != nil {
		return config.Config{}, err
	}
	cfg.ProjectCode = code
	if err := s.SaveConfig(ctx, cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// SetSubprojectCode updates config.json's subproject_code.
func (s *Store) SetSubprojectCode(ctx context.Context, code string) (config.Config, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return config.Config{}, err
	}
	cfg.SubprojectCode = code
	if err := s.SaveConfig(ctx, cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
