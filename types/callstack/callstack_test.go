package callstack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOrder(t *testing.T) {
	s := NewCallStack()
	var order []int
	for i := 1; i <= 3; i++ {
		s.Add(func() error {
			order = append(order, i)
			return nil
		})
	}
	s.Add(nil)
	assert.Equal(t, 3, s.Len())

	require.NoError(t, s.Run(false))
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.Equal(t, 0, s.Len())

	// steps run once
	require.NoError(t, s.Run(false))
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestRunErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	s := NewCallStack()
	ran := 0
	s.Add(func() error { ran++; return errA })
	s.Add(func() error { ran++; return errB })
	err := s.Run(false)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 2, ran)

	ran = 0
	s.Add(func() error { ran++; return errA })
	s.Add(func() error { ran++; return errB })
	err = s.Run(true)
	assert.ErrorIs(t, err, errB)
	assert.NotErrorIs(t, err, errA)
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, s.Len())
}
