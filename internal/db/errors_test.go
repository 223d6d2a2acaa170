package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_WrapsCause(t *testing.T) {
	err := &Error{Op: OpGet, Err: context.DeadlineExceeded}
	assert.EqualError(t, err, "GET: context deadline exceeded")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
