package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// fieldCheck pairs a request field with its validator tag.
type fieldCheck struct {
	name  string
	value string
	tag   string
}

// validateFields runs every check and collects one message per field.
func validateFields(checks ...fieldCheck) error {
	verr := common.NewValidationError()

	for _, c := range checks {
		err := validate.Var(c.value, c.tag)
		if err == nil {
			continue
		}
		var fe validator.ValidationErrors
		if errors.As(err, &fe) && len(fe) > 0 {
			verr.Add(c.name, fieldMessage(c.name, fe[0]))
			continue
		}
		verr.Add(c.name, c.name+" is invalid.")
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required."
	case "email":
		return field + " must be a valid email address."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters.", field, fe.Param())
	default:
		return field + " is invalid."
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
