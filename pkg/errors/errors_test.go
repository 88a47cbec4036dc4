package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorIsMatchesByCode(t *testing.T) {
	err := Newf(CodeQualityGateExceeded, "chapter %d failed review", 3)

	assert.ErrorIs(t, err, ErrQualityGateExceeded)
	assert.NotErrorIs(t, err, ErrGeneration)

	wrapped := fmt.Errorf("run chapter: %w", err)
	assert.ErrorIs(t, wrapped, ErrQualityGateExceeded)
}

func TestMissingInputIsValidation(t *testing.T) {
	err := MissingInputf("no outline entry for chapter %d", 9)

	assert.ErrorIs(t, err, ErrMissingInput)
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, Validationf("bad"), ErrMissingInput)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(cause, CodeGenerationFailed, "writer failed")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeSuccess, GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(stderrors.New("x")))
	assert.Equal(t, CodeCancelled, GetCode(fmt.Errorf("outer: %w", New(CodeCancelled, "stop"))))
}

func TestAsAppError(t *testing.T) {
	appErr := AsAppError(fmt.Errorf("outer: %w", New(CodeMissingInput, "missing")))
	assert.Equal(t, CodeMissingInput, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)

	unknown := AsAppError(stderrors.New("boom"))
	assert.Equal(t, CodeUnknown, unknown.Code)
	assert.True(t, IsAppError(unknown))
}
