package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/vigil-app/vigil/pkg/errors"
	"github.com/vigil-app/vigil/pkg/response"
	appValidator "github.com/vigil-app/vigil/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			response.Error(c, appErrors.NewValidation("validation failed",
				fmt.Sprintf("%s must be a %s", typeErr.Field, expectedJSONKind(typeErr.Type))))
			return false
		}
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewValidation("validation failed", validationDetails(err)...))
		return false
	}

	return true
}

func expectedJSONKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Map, reflect.Struct:
		return "JSON object"
	case reflect.Slice, reflect.Array:
		return "JSON array"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	default:
		return "number"
	}
}

func validationDetails(err error) []string {
	if err == nil {
		return nil
	}

	ve, ok := err.(appValidator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return []string{"invalid request payload"}
	}

	details := make([]string, 0, len(ve))
	for _, failure := range ve {
		field := prettifyFieldName(failure.Field)
		switch failure.Tag {
		case "required":
			details = append(details, fmt.Sprintf("%s is required", field))
		case "email":
			details = append(details, fmt.Sprintf("%s must be a valid email address", field))
		case "min":
			details = append(details, fmt.Sprintf("%s must be at least %s characters", field, failure.Param))
		case "max":
			details = append(details, fmt.Sprintf("%s must be at most %s characters", field, failure.Param))
		default:
			if failure.Param != "" {
				details = append(details, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
			} else {
				details = append(details, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
			}
		}
	}
	return details
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}

// intQuery parses an optional integer query parameter, reporting a validation
// detail when the raw value is not an integer.
func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.NewValidation("validation failed", fmt.Sprintf("%s must be an integer", key))
	}
	return parsed, nil
}
