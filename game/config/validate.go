package config

import (
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"
)

// ValidationResult captures the outcome of validating a single file.
type ValidationResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
	Config *Config  `json:"config,omitempty"`
}

// ValidateFile loads path and runs every check, collecting each problem as
// its own message.
func ValidateFile(path string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(path),
		Valid: true,
	}

	cfg, err := Load(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Config = cfg

	for _, err := range multierr.Errors(cfg.problems()) {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}
	return result
}

// Summary renders the result the way the validate command prints it.
func (r ValidationResult) Summary() string {
	if r.Valid {
		return fmt.Sprintf("✓ %s: valid", r.File)
	}
	s := fmt.Sprintf("✗ %s: %d problem(s)", r.File, len(r.Errors))
	for _, e := range r.Errors {
		s += "\n  - " + e
	}
	return s
}
