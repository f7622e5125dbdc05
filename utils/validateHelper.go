package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs the validator tags declared on s. Parsed rows are
// validated before they are loaded so one bad row never aborts a batch.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
