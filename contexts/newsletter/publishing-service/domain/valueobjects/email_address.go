package valueobjects

import (
	"fmt"
	"strings"

	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type EmailAddress struct {
	value string
}

func ParseEmailAddress(raw string) (EmailAddress, error) {
	value := strings.TrimSpace(raw)
	if err := validate.Var(value, "required,email,max=254"); err != nil {
		return EmailAddress{}, fmt.Errorf("%w: %q", domainerrors.ErrInvalidEmailAddress, raw)
	}
	return EmailAddress{value: value}, nil
}

func (e EmailAddress) String() string {
	return e.value
}
