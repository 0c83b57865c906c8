package errorcodes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSandboxErrorFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "E1: Plugin arena exhausted", ErrOutOfMemory.Error())
	assert.Equal(t, "E3", ErrNoActivePlugin.CodeOnly())
}

func TestContractViolation(t *testing.T) {
	t.Parallel()

	err := Violation("malloc", ErrNoActivePlugin)
	assert.True(t, IsContractViolation(err))
	assert.True(t, errors.Is(err, ErrNoActivePlugin))
	assert.Equal(t, "E3", Code(err))
	assert.Contains(t, err.Error(), "malloc")

	wrapped := fmt.Errorf("invoke: %w", err)
	assert.True(t, IsContractViolation(wrapped))

	assert.False(t, IsContractViolation(ErrOutOfMemory))
	assert.Equal(t, "E1", Code(fmt.Errorf("alloc: %w", ErrOutOfMemory)))
	assert.Equal(t, "", Code(errors.New("plain")))
}
