package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestDomainErrorsMatchSentinelsByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewSlotConflict("taken", map[string]any{"blocked_by": "TCK-000001"}))

	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.True(t, IsCode(err, CodeSlotConflict))
	assert.False(t, IsCode(errors.New("plain"), CodeSlotConflict))
}

func TestTaxonomyStatuses(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{NewInvalidTransition("t", "x"), CodeInvalidTransition, http.StatusConflict},
		{NewTicketClosed("t"), CodeTicketClosed, http.StatusConflict},
		{NewMissingRequiredInput("diagnosis", "diagnosis_findings"), CodeMissingRequiredInput, http.StatusUnprocessableEntity},
		{NewSlotConflict("taken", nil), CodeSlotConflict, http.StatusConflict},
		{NewUnknownEngineer("e"), CodeUnknownEngineer, http.StatusUnprocessableEntity},
		{NewUnknownWorkflowReference("bad", nil), CodeUnknownWorkflowReference, http.StatusUnprocessableEntity},
		{NewWorkflowInUse("busy", nil), CodeWorkflowInUse, http.StatusConflict},
		{NewValidationError("bad", nil), CodeValidationFailed, http.StatusBadRequest},
		{NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound},
		{NewUnauthorized("no"), CodeUnauthorized, http.StatusUnauthorized},
		{NewForbidden("no"), CodeForbidden, http.StatusForbidden},
	}
	for _, tc := range cases {
		de := ToDomainError(tc.err)
		assert.Equal(t, tc.code, de.Code)
		assert.Equal(t, tc.status, de.HTTPStatus, tc.code)
	}
}

func TestToDomainErrorMapsStorageFailures(t *testing.T) {
	assert.Equal(t, CodeNotFound, ToDomainError(fmt.Errorf("scan: %w", pgx.ErrNoRows)).Code)

	cause := errors.New("connection reset")
	de := ToDomainError(cause)
	assert.Equal(t, CodeInternal, de.Code)
	assert.ErrorIs(t, de, cause)

	assert.Nil(t, MapError(nil))
}
