package http

import (
	"errors"
	"net/http"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
)

// statusFor maps a ledger failure to its HTTP status and log category.
func statusFor(err error) (int, string) {
	var refErr *ledger.ReferencedError
	switch {
	case errors.As(err, &refErr), errors.Is(err, ledger.ErrReferenced):
		return http.StatusConflict, log.ErrorTypeConflict
	case errors.Is(err, ledger.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, log.ErrorTypeConflict
	case errors.Is(err, ledger.ErrUndoUnavailable):
		return http.StatusGone, log.ErrorTypeNotFound
	case core.IsValidation(err),
		errors.Is(err, ledger.ErrInvalidReassign),
		errors.Is(err, ledger.ErrNotTemplate),
		errors.Is(err, ledger.ErrNothingToPopulate),
		errors.Is(err, ledger.ErrUnsupportedSnapshot),
		errors.Is(err, errBadRequest):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	case errors.Is(err, ledger.ErrBaseNotFound),
		errors.Is(err, ledger.ErrBlockNotFound),
		errors.Is(err, ledger.ErrRowNotFound),
		errors.Is(err, ledger.ErrBandNotFound),
		errors.Is(err, ledger.ErrFixedBillNotFound),
		errors.Is(err, ledger.ErrScheduleNotFound),
		errors.Is(err, ledger.ErrMasterNotFound),
		errors.Is(err, ledger.ErrUnknownMasterKind):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, ledger.ErrAlreadyExecuted),
		errors.Is(err, ledger.ErrNotExecuted),
		errors.Is(err, ledger.ErrTemplateRow),
		errors.Is(err, ledger.ErrRowLocked),
		errors.Is(err, ledger.ErrExecutedOnSave),
		errors.Is(err, ledger.ErrTypeChange),
		errors.Is(err, ledger.ErrExecutedReference),
		errors.Is(err, ledger.ErrDuplicateID),
		errors.Is(err, ledger.ErrDuplicateName):
		return http.StatusConflict, log.ErrorTypeConflict
	}
	return http.StatusInternalServerError, log.ErrorTypeInternal
}

// errorResponse builds the response for err. Internal errors hide their
// message from the client.
func errorResponse(err error) *ResponseBuilder {
	status, _ := statusFor(err)
	if status == http.StatusInternalServerError {
		return InternalServerError("internal error")
	}

	body := ErrorBody{Error: err.Error()}
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		body.Field = vErr.Field
	}
	var refErr *ledger.ReferencedError
	if errors.As(err, &refErr) {
		body.Usages = refErr.Usages
	}
	return ErrorResponse(status, err.Error()).JSON(body)
}

// fail logs err under op and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, category := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err,
			log.ComponentHTTP, op, log.LogFields{"error_type": category})
	} else {
		logger.InfoContext(r.Context(), "Request rejected",
			log.FieldOperation, op, log.FieldError, err.Error(), "error_type", category)
	}
	errorResponse(err).Write(w)
}
