package valueobjects

import (
	"regexp"
	"strings"

	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"
)

const MaxIdempotencyKeyLength = 50

var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// IdempotencyKey is a caller-supplied token that passed format validation.
type IdempotencyKey struct {
	value string
}

// ParseIdempotencyKey validates the raw token before anything touches storage.
func ParseIdempotencyKey(raw string) (IdempotencyKey, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return IdempotencyKey{}, domainerrors.ErrIdempotencyKeyRequired
	}
	if len(value) > MaxIdempotencyKeyLength || !idempotencyKeyPattern.MatchString(value) {
		return IdempotencyKey{}, domainerrors.ErrInvalidIdempotencyKey
	}
	return IdempotencyKey{value: value}, nil
}

func (k IdempotencyKey) String() string {
	return k.value
}
