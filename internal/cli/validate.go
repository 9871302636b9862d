package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phantien133/active-aggregate/internal/compiler"
)

// ValidationIssue is a validation error attributed to its registry.
type ValidationIssue struct {
	Registry string `json:"registry"`
	Source   string `json:"source,omitempty"`
	compiler.ValidationError
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Registries int               `json:"registries"`
	Errors     []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs>",
		Short: "Validate scope specs without compiling",
		Long: `Validate scope specs (a YAML/CUE file or a directory) without building
relations.

Checks required fields, sort terms, limits, pipeline stages, match
selectors, placeholder arity, and uses references and cycles.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	specs, err := loadSpecs(specsPath, opts.settings().Suffix)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "loading specs", err)
	}
	formatter.VerboseLog("Loaded %d registry spec(s) from %s", len(specs), specsPath)

	result := ValidationResult{Valid: true, Registries: len(specs)}
	for _, spec := range specs {
		formatter.VerboseLog("Validating registry: %s", spec.Registry)
		for _, e := range compiler.Validate(spec) {
			result.Errors = append(result.Errors, ValidationIssue{
				Registry:        spec.Registry,
				Source:          spec.Source,
				ValidationError: e,
			})
		}
	}
	result.Valid = len(result.Errors) == 0

	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d registries)\n", result.Registries)
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Source != "" {
			fmt.Fprintf(formatter.Writer, "%s (%s)\n", err.Registry, err.Source)
		} else {
			fmt.Fprintln(formatter.Writer, err.Registry)
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
