package errors

import "errors"

var (
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrInvalidIdempotencyKey  = errors.New("idempotency key is malformed")
	ErrOwnerRequired          = errors.New("caller identity is required")
	ErrInvalidIssueContent    = errors.New("newsletter issue title, text and html content are required")
	ErrIssueNotFound          = errors.New("newsletter issue not found")
	ErrIssueAlreadyExists     = errors.New("newsletter issue already exists")
	ErrInvalidEmailAddress    = errors.New("email address is invalid")
	ErrUnknownTransaction     = errors.New("transaction does not belong to this store")
	ErrEmailDeliveryFailed    = errors.New("email delivery failed")
)
