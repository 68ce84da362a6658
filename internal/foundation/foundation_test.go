package foundation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultOk(t *testing.T) {
	r := Ok[string, error]("artifact.apk")
	require.True(t, r.IsOk())
	assert.False(t, r.IsErr())
	assert.Equal(t, "artifact.apk", r.Unwrap())
	assert.Panics(t, func() { r.UnwrapErr() })

	v, err := r.ToTuple()
	assert.Equal(t, "artifact.apk", v)
	assert.NoError(t, err)
}

func TestResultErr(t *testing.T) {
	testErr := errors.New("boom")
	r := Err[string, error](testErr)
	require.True(t, r.IsErr())
	assert.ErrorIs(t, r.UnwrapErr(), testErr)
	assert.Panics(t, func() { r.Unwrap() })

	v, err := r.ToTuple()
	assert.Empty(t, v)
	assert.ErrorIs(t, err, testErr)
}

func TestResultMatchAndMap(t *testing.T) {
	var got string
	Ok[int, error](3).Match(
		func(v int) { got = "ok" },
		func(error) { got = "err" },
	)
	assert.Equal(t, "ok", got)

	Err[int, error](errors.New("x")).Match(
		func(int) { got = "ok" },
		func(error) { got = "err" },
	)
	assert.Equal(t, "err", got)

	mapped := Map(Ok[int, error](2), func(v int) int { return v * 10 })
	assert.Equal(t, 20, mapped.Unwrap())

	failed := Map(Err[int, error](errors.New("x")), func(v int) int { return v * 10 })
	assert.True(t, failed.IsErr())
}
