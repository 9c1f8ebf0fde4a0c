package errors

import (
	stderr "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("not found")
	cause := stderr.New("key missing")

	wrapped := sentinel.WrapMessage("stack %q", "dev").Wrap(cause)

	require.Error(t, wrapped)
	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, cause))
	assert.Equal(t, `not found: stack "dev": key missing`, wrapped.Error())

	// the sentinel itself is left untouched
	assert.Equal(t, "not found", sentinel.Error())
	assert.Nil(t, sentinel.Unwrap())
}

func TestIsDistinguishesSentinels(t *testing.T) {
	notFound := New("not found")
	broken := New("consistency violation")

	err := broken.WrapMessage("2 default stacks")
	assert.False(t, Is(err, notFound))
	assert.True(t, Is(err, broken))

	var target *Error
	require.True(t, As(err, &target))
	assert.Equal(t, "consistency violation: 2 default stacks", target.Error())
}
