package config

import (
	"fmt"
	"time"

	"github.com/lucasnoah/fixfactory/internal/issue"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedParsers is the set of valid parser names for checks.
var recognizedParsers = map[string]bool{
	"eslint":     true,
	"typescript": true,
	"vitest":     true,
	"npm-audit":  true,
	"generic":    true,
}

// Validate checks a Config for structural and semantic errors. It
// returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if len(cfg.Checks) == 0 {
		errs = append(errs, ValidationError{Field: "checks", Message: "at least one check is required"})
	}

	checkNames := make(map[string]bool)
	for i, c := range cfg.Checks {
		field := fmt.Sprintf("checks[%d]", i)
		if c.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "is required"})
		} else {
			if checkNames[c.Name] {
				errs = append(errs, ValidationError{
					Field:   field + ".name",
					Message: fmt.Sprintf("duplicate check name %q", c.Name),
				})
			}
			checkNames[c.Name] = true
		}
		if c.Command == "" {
			errs = append(errs, ValidationError{Field: field + ".command", Message: "is required"})
		}
		if c.Parser != "" && !recognizedParsers[c.Parser] {
			errs = append(errs, ValidationError{
				Field:   field + ".parser",
				Message: fmt.Sprintf("unrecognized parser %q", c.Parser),
			})
		}
		if c.Kind != "" && !issue.Kind(c.Kind).Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unrecognized kind %q", c.Kind),
			})
		}
		if c.Timeout != "" {
			if _, err := time.ParseDuration(c.Timeout); err != nil {
				errs = append(errs, ValidationError{
					Field:   field + ".timeout",
					Message: fmt.Sprintf("invalid duration %q", c.Timeout),
				})
			}
		}
		if c.AutoFix && c.FixCommand == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".fix_command",
				Message: "is required when auto_fix is set",
			})
		}
	}

	agentNames := make(map[string]bool)
	for i, a := range cfg.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		if a.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "is required"})
		} else {
			if agentNames[a.Name] {
				errs = append(errs, ValidationError{
					Field:   field + ".name",
					Message: fmt.Sprintf("duplicate agent name %q", a.Name),
				})
			}
			agentNames[a.Name] = true
		}
		if a.Command == "" {
			errs = append(errs, ValidationError{Field: field + ".command", Message: "is required"})
		}
		if len(a.Kinds) == 0 {
			errs = append(errs, ValidationError{Field: field + ".kinds", Message: "at least one kind is required"})
		}
		for _, k := range a.Kinds {
			if !issue.Kind(k).Valid() {
				errs = append(errs, ValidationError{
					Field:   field + ".kinds",
					Message: fmt.Sprintf("unrecognized kind %q", k),
				})
			}
		}
		if a.Priority < 0 {
			errs = append(errs, ValidationError{Field: field + ".priority", Message: "must not be negative"})
		}
		if a.BaseConfidence < 0 || a.BaseConfidence > 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".base_confidence",
				Message: "must be between 0 and 1",
			})
		}
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				errs = append(errs, ValidationError{
					Field:   field + ".timeout",
					Message: fmt.Sprintf("invalid duration %q", a.Timeout),
				})
			}
		}
	}

	l := cfg.Loop
	if l.MaxIterations < 0 {
		errs = append(errs, ValidationError{Field: "loop.max_iterations", Message: "must not be negative"})
	}
	if l.StagnationWindow < 0 {
		errs = append(errs, ValidationError{Field: "loop.stagnation_window", Message: "must not be negative"})
	}
	if l.AcceptanceThreshold < 0 || l.AcceptanceThreshold > 1 {
		errs = append(errs, ValidationError{Field: "loop.acceptance_threshold", Message: "must be between 0 and 1"})
	}
	if l.CacheThreshold < 0 || l.CacheThreshold > 1 {
		errs = append(errs, ValidationError{Field: "loop.cache_threshold", Message: "must be between 0 and 1"})
	}

	return errs
}
