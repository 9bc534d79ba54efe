package flow

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNonBlockingSend(t *testing.T) {
	ch := make(chan int, 1)

	assert.NoError(t, NonBlockingSend(context.Background(), ch, 1))
	assert.ErrorIs(t, NonBlockingSend(context.Background(), ch, 2), NotSent)
	assert.Equal(t, 1, <-ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	unbuffered := make(chan int)
	assert.ErrorIs(t, NonBlockingSend(ctx, unbuffered, 3), context.Canceled)
}

func TestReportDropsWhenFull(t *testing.T) {
	ch := make(chan error, 1)

	Report(ch, nil)
	assert.Len(t, ch, 0)

	first := errors.New("first")
	Report(ch, first)
	Report(ch, errors.New("second"))

	assert.Len(t, ch, 1)
	assert.Equal(t, first, <-ch)
}

func TestFlattenErrors(t *testing.T) {
	assert.NoError(t, FlattenErrors())
	assert.NoError(t, FlattenErrors(nil, nil))

	only := errors.New("only")
	assert.Equal(t, only, FlattenErrors(nil, only))

	assert.EqualError(t, FlattenErrors(errors.New("a"), nil, errors.New("b")), "a, b")
}
