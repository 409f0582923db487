package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := NotFound("user %s not found", "abc")

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, "user abc not found", err.Error())
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("failed to get user: %w", Validation("amount must not be negative"))

	assert.True(t, IsValidation(err))
	assert.Equal(t, CodeValidation, CodeOf(err))
}

func TestConsistencyKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Consistency(cause, "balance update failed")

	assert.True(t, IsConsistency(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "balance update failed: connection reset", err.Error())
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}

func TestWithMetadataCopies(t *testing.T) {
	base := Validation("bad type")
	withKey := base.WithMetadata("type", "Refund")

	assert.Nil(t, base.Metadata)
	assert.Equal(t, "Refund", withKey.Metadata["type"])
	assert.True(t, IsValidation(withKey))
}
