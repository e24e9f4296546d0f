package httpserver

import (
	"errors"
	"net/http"

	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"
	newsletterhttp "letterbox/contexts/newsletter/publishing-service/transport/http"
)

func writeNewsletterError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, newsletterhttp.ErrorResponse{Code: code, Message: message})
}

func writeNewsletterDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrIdempotencyKeyRequired):
		writeNewsletterError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidIdempotencyKey):
		writeNewsletterError(w, http.StatusBadRequest, "invalid_idempotency_key", err.Error())
	case errors.Is(err, domainerrors.ErrOwnerRequired):
		writeNewsletterError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidIssueContent):
		writeNewsletterError(w, http.StatusUnprocessableEntity, "invalid_issue_content", err.Error())
	case errors.Is(err, domainerrors.ErrIssueNotFound):
		writeNewsletterError(w, http.StatusNotFound, "issue_not_found", err.Error())
	default:
		writeNewsletterError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
