package util

import (
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var Validate *validator.Validate

func InitValidator() {
	Validate = validator.New()
}

func init() {
	InitValidator()
}

// ValidationMessages flattens a validator error into one message per
// failing field. Other errors are returned as a single message.
func ValidationMessages(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	return lo.Map(verrs, func(item validator.FieldError, _ int) string {
		return item.Error()
	})
}
