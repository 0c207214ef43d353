package validation

import (
	"fmt"
	"regexp"
)

// JSONSchema defines the structure for request body schemas
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Pattern     *string  `json:"pattern,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorSummary renders the validation errors as a single detail string.
func (r *ValidationResult) ErrorSummary() string {
	summary := ""
	for i, e := range r.Errors {
		if i > 0 {
			summary += "; "
		}
		summary += fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return summary
}

// ValidateInput validates input against JSON schema with detailed errors
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	errors := []ValidationError{}

	// Check required fields
	for _, requiredField := range schema.Required {
		if _, exists := input[requiredField]; !exists {
			errors = append(errors, ValidationError{
				Field:   requiredField,
				Message: "required field missing",
				Code:    "REQUIRED_FIELD_MISSING",
			})
		}
	}

	// Validate field types and constraints
	for fieldName, value := range input {
		prop, exists := schema.Properties[fieldName]
		if !exists {
			if !schema.AdditionalProperties {
				errors = append(errors, ValidationError{
					Field:   fieldName,
					Message: "field not allowed in schema",
					Code:    "EXTRA_FIELD",
				})
			}
			continue
		}

		if fieldErrors := validateField(fieldName, value, prop); len(fieldErrors) > 0 {
			errors = append(errors, fieldErrors...)
		}
	}

	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateField(name string, value interface{}, prop Property) []ValidationError {
	errors := []ValidationError{}

	switch prop.Type {
	case "string":
		strVal, ok := value.(string)
		if !ok {
			return append(errors, ValidationError{
				Field:   name,
				Message: "expected string",
				Code:    "TYPE_MISMATCH",
			})
		}
		if prop.MinLength != nil && len(strVal) < *prop.MinLength {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("shorter than minimum length %d", *prop.MinLength),
				Code:    "MIN_LENGTH",
			})
		}
		if prop.MaxLength != nil && len(strVal) > *prop.MaxLength {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("longer than maximum length %d", *prop.MaxLength),
				Code:    "MAX_LENGTH",
			})
		}
		if len(prop.Enum) > 0 && !containsString(prop.Enum, strVal) {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("value %q not in allowed set %v", strVal, prop.Enum),
				Code:    "ENUM_MISMATCH",
			})
		}
		if prop.Pattern != nil {
			re, err := regexp.Compile(*prop.Pattern)
			if err == nil && !re.MatchString(strVal) {
				errors = append(errors, ValidationError{
					Field:   name,
					Message: "value does not match pattern",
					Code:    "PATTERN_MISMATCH",
				})
			}
		}

	case "number", "integer":
		numVal, ok := toFloat(value)
		if !ok {
			return append(errors, ValidationError{
				Field:   name,
				Message: "expected number",
				Code:    "TYPE_MISMATCH",
			})
		}
		if prop.Minimum != nil && numVal < *prop.Minimum {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("below minimum %v", *prop.Minimum),
				Code:    "MINIMUM",
			})
		}
		if prop.Maximum != nil && numVal > *prop.Maximum {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("above maximum %v", *prop.Maximum),
				Code:    "MAXIMUM",
			})
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: "expected boolean",
				Code:    "TYPE_MISMATCH",
			})
		}
	}

	return errors
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
