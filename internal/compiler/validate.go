package compiler

import (
	"fmt"
	"strings"

	"github.com/phantien133/active-aggregate/internal/criteria"
	"github.com/phantien133/active-aggregate/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrRegistryNameEmpty   = "E201" // registry name is required
	ErrNoScopes            = "E202" // at least one scope required
	ErrScopeNameEmpty      = "E203" // scope name is required
	ErrDuplicateScope      = "E204" // duplicate scope name
	ErrInvalidSort         = "E205" // invalid sort term
	ErrInvalidLimit        = "E206" // limit is not a non-negative integer or placeholder
	ErrInvalidStage        = "E207" // pipeline stage is not a single $operator
	ErrUnknownUse          = "E208" // uses references an undefined scope
	ErrPlaceholderRange    = "E209" // placeholder beyond declared arity
	ErrInvalidMatch        = "E210" // match selector is malformed
	ErrUsesCycle           = "E211" // scopes use each other in a cycle
	ErrInvalidRegistryName = "E212" // registry name does not end in its suffix
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks spec and returns every problem found (does not fail-fast).
func Validate(spec *Spec) []ValidationError {
	var errs []ValidationError

	// E201: registry name required
	if strings.TrimSpace(spec.Registry) == "" {
		errs = append(errs, ValidationError{
			Field:   "registry",
			Message: "registry name is required",
			Code:    ErrRegistryNameEmpty,
		})
	} else if spec.Model == "" && spec.ModelName() == spec.Registry {
		// E212: the model name is derived by stripping the suffix
		errs = append(errs, ValidationError{
			Field:   "registry",
			Message: fmt.Sprintf("registry %q does not end in %q and names no model", spec.Registry, spec.suffix()),
			Code:    ErrInvalidRegistryName,
		})
	} else if spec.ModelName() == "" {
		errs = append(errs, ValidationError{
			Field:   "registry",
			Message: fmt.Sprintf("registry %q leaves an empty model name", spec.Registry),
			Code:    ErrInvalidRegistryName,
		})
	}

	// E202: at least one scope
	if len(spec.Scopes) == 0 {
		errs = append(errs, ValidationError{
			Field:   "scopes",
			Message: "at least one scope is required",
			Code:    ErrNoScopes,
		})
	}

	names := make(map[string]bool, len(spec.Scopes))
	for _, sc := range spec.Scopes {
		if sc.Name != "" {
			names[sc.Name] = true
		}
	}

	seen := make(map[string]bool, len(spec.Scopes))
	for i := range spec.Scopes {
		sc := &spec.Scopes[i]
		field := fmt.Sprintf("scopes[%d]", i)

		// E203/E204: names
		if strings.TrimSpace(sc.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "scope name is required",
				Code:    ErrScopeNameEmpty,
			})
		} else {
			if seen[sc.Name] {
				errs = append(errs, ValidationError{
					Field:   field + ".name",
					Message: fmt.Sprintf("duplicate scope name: %q", sc.Name),
					Code:    ErrDuplicateScope,
				})
			}
			seen[sc.Name] = true
		}

		errs = append(errs, validateScope(sc, field, names)...)
	}

	// E211: uses cycles
	for _, c := range AnalyzeUses(spec) {
		errs = append(errs, ValidationError{
			Field:   "scopes",
			Message: c.Message,
			Code:    ErrUsesCycle,
		})
	}

	return errs
}

func validateScope(sc *ScopeSpec, field string, names map[string]bool) []ValidationError {
	var errs []ValidationError

	// E205: sort terms
	if _, err := ir.ParseSort(sc.Sort...); err != nil {
		errs = append(errs, ValidationError{
			Field:   field + ".sort",
			Message: err.Error(),
			Code:    ErrInvalidSort,
		})
	}

	// E206: limit
	if sc.Limit != nil {
		if _, ok := placeholderIndex(sc.Limit); !ok {
			n, err := toLimit(sc.Limit)
			switch {
			case err != nil:
				errs = append(errs, ValidationError{
					Field:   field + ".limit",
					Message: err.Error(),
					Code:    ErrInvalidLimit,
				})
			case n < 0:
				errs = append(errs, ValidationError{
					Field:   field + ".limit",
					Message: fmt.Sprintf("limit must not be negative, got %d", n),
					Code:    ErrInvalidLimit,
				})
			}
		}
	}

	// E207: pipeline stages
	for j, raw := range sc.Pipeline {
		if _, err := ir.StageFromDoc(ir.Doc(raw)); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.pipeline[%d]", field, j),
				Message: err.Error(),
				Code:    ErrInvalidStage,
			})
		}
	}

	// E208: uses references
	for j, u := range sc.Uses {
		if !names[u.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.uses[%d]", field, j),
				Message: fmt.Sprintf("undefined scope %q", u.Name),
				Code:    ErrUnknownUse,
			})
		}
	}

	// E209: placeholders within declared arity
	if sc.Arity > 0 {
		if used := sc.placeholders(); used > sc.Arity {
			errs = append(errs, ValidationError{
				Field:   field + ".arity",
				Message: fmt.Sprintf("placeholder $%d exceeds declared arity %d", used, sc.Arity),
				Code:    ErrPlaceholderRange,
			})
		}
	}

	// E210: match structure
	if sc.Match != nil {
		res := criteria.Validate(criteria.Where(ir.Doc(sc.Match)))
		for _, w := range res.Warnings {
			errs = append(errs, ValidationError{
				Field:   field + ".match",
				Message: w,
				Code:    ErrInvalidMatch,
			})
		}
	}

	return errs
}
