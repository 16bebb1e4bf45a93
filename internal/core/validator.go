package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"alathletics/internal/types"
)

// Validator wraps go-playground/validator for request payload validation.
// A single instance is shared; the underlying validator caches struct
// metadata and is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator. Enum-valued request fields use oneof
// tags; no custom tags are registered yet.
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateStruct runs the struct's validation tags. Failures are returned as
// a validation AppError listing the offending fields, ready for core.Error.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// Non-struct input is a programming error, not client input.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid value passed to validator", err)
	}

	fields := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[strings.ToLower(fe.Field())] = fmt.Sprintf("failed %q validation", fe.Tag())
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"request validation failed",
		err,
		map[string]any{"fields": fields},
	)
}
