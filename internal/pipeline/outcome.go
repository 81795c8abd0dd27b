package pipeline

import (
	"errors"
	"net/http"

	dErrors "consentsync/pkg/domain-errors"
	"consentsync/pkg/platform/sentinel"
)

const (
	msgPollSucceeded     = "Polling FHIR history and saving Consent resource IDs was successful"
	msgPollNoChanges     = "Polling FHIR history found no new Consent resources"
	msgPollFailed        = "Failed to poll FHIR history"
	msgRegisterSucceeded = "Register FHIR consents has been successful"
	msgNoPending         = "No staged Consent resources to register"
	msgListFailed        = "Failed to retrieve staged FHIR consent resource IDs"
	msgRegisterFailed    = "Failed to register FHIR consents"
	msgRemoveFailed      = "Failed to remove ID consent resource"
	msgNotFound          = "Not found resources"
	msgTenantRequired    = "tenant id is required"
)

// Outcome is the {status, message} result of a pipeline operation. Status
// follows HTTP semantics so the boundary can answer with it directly.
// Retryable marks transient failures that a later run may clear on its own.
type Outcome struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// OK reports a 2xx outcome.
func (o Outcome) OK() bool {
	return o.Status >= 200 && o.Status < 300
}

func success(msg string) Outcome {
	return Outcome{Status: http.StatusOK, Message: msg}
}

func created(msg string) Outcome {
	return Outcome{Status: http.StatusCreated, Message: msg}
}

// failure renders err. Coded errors keep their status and message; anything
// else is reported as a 500 with fallback.
func failure(err error, fallback string) Outcome {
	var de *dErrors.Error
	if !errors.As(err, &de) || de.Message == "" {
		return Outcome{Status: http.StatusInternalServerError, Message: fallback}
	}
	return Outcome{Status: dErrors.ToHTTPStatus(err), Message: de.Message, Retryable: dErrors.IsRetryable(err)}
}

// storeError codes a staging store failure. Transient failures stay retryable.
func storeError(err error, msg string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
