package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/notify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ValidationError represents a configuration validation error with context
type ValidationError struct {
	FilePath string
	Line     int
	Column   int
	Message  string
	Field    string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s': %s", e.FilePath, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// ValidateYAMLSyntax checks if the YAML file has valid syntax.
// Returns nil if valid, or a ValidationError with line/column information if invalid.
func ValidateYAMLSyntax(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Missing file is not an error - will use defaults
		}
		if os.IsPermission(err) {
			return &ValidationError{
				FilePath: filePath,
				Message:  "permission denied",
			}
		}
		return &ValidationError{
			FilePath: filePath,
			Message:  err.Error(),
		}
	}

	return ValidateYAMLSyntaxFromBytes(data, filePath)
}

// ValidateYAMLSyntaxFromBytes checks if YAML data has valid syntax.
// Returns nil if valid, or a ValidationError if invalid.
func ValidateYAMLSyntaxFromBytes(data []byte, filePath string) error {
	// Empty data is valid - will use defaults
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		var typeError *yaml.TypeError
		if errors.As(err, &typeError) {
			return &ValidationError{
				FilePath: filePath,
				Message:  strings.Join(typeError.Errors, "; "),
			}
		}
		line, column := extractLineColumn(err.Error())
		return &ValidationError{
			FilePath: filePath,
			Line:     line,
			Column:   column,
			Message:  cleanYAMLError(err.Error()),
		}
	}

	return nil
}

// ValidateConfigValues checks value ranges and cross-field rules. Failures
// are returned as a Configuration-category *errors.CLIError naming the key.
func ValidateConfigValues(cfg *Configuration, filePath string) error {
	if err := configValidator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fieldErr := validationErrors[0]
			return cerrors.InvalidConfigValue(keyPath(fieldErr), formatValidationError(fieldErr), allowedValues(fieldErr)...)
		}
		return cerrors.WrapWithMessage(err, cerrors.Configuration, filePath)
	}

	if cfg.Generator.Type == "command" {
		if strings.TrimSpace(cfg.Generator.Command) == "" {
			return cerrors.InvalidConfigValue("generator.command", "is required when generator.type is command")
		}
		if !strings.Contains(cfg.Generator.Command, "{{PROMPT}}") {
			return cerrors.InvalidConfigValue("generator.command", "must contain {{PROMPT}} placeholder")
		}
	}
	if !notify.ValidOutputType(string(cfg.Notifications.Type)) {
		return cerrors.InvalidConfigValue("notifications.type",
			fmt.Sprintf("unknown notification type %q", cfg.Notifications.Type), notify.OutputTypes()...)
	}
	return nil
}

// configValidator reports fields by their koanf key rather than Go name.
var configValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}()

// keyPath turns "Configuration.generator.type" into "generator.type".
func keyPath(fieldErr validator.FieldError) string {
	ns := fieldErr.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func allowedValues(fieldErr validator.FieldError) []string {
	if fieldErr.Tag() == "oneof" {
		return strings.Fields(fieldErr.Param())
	}
	return nil
}

// extractLineColumn attempts to extract line and column numbers from a YAML error message.
// Returns 0, 0 if unable to extract.
func extractLineColumn(errMsg string) (line, column int) {
	// yaml.v3 errors look like: "yaml: line 5: could not find expected ':'"
	var l, c int
	if n, _ := fmt.Sscanf(errMsg, "yaml: line %d: column %d:", &l, &c); n == 2 {
		return l, c
	}
	if n, _ := fmt.Sscanf(errMsg, "yaml: line %d:", &l); n == 1 {
		return l, 1
	}
	return 0, 0
}

// cleanYAMLError removes the "yaml: line X:" prefix from error messages for cleaner output.
func cleanYAMLError(errMsg string) string {
	// Remove "yaml: line X:" prefix
	if idx := strings.LastIndex(errMsg, ": "); idx > 0 {
		// Check if this looks like a yaml error
		if strings.HasPrefix(errMsg, "yaml:") {
			return errMsg[idx+2:]
		}
	}
	return errMsg
}

// formatValidationError formats a validation error for a specific field.
func formatValidationError(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fieldErr.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", fmt.Sprint(fieldErr.Value()), fieldErr.Param())
	case "email":
		return fmt.Sprintf("%q is not a valid email address", fmt.Sprint(fieldErr.Value()))
	case "required_if":
		return "is required when enabled"
	default:
		return fmt.Sprintf("failed validation: %s", fieldErr.Tag())
	}
}
