package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChainStopsAtFirstFailure(t *testing.T) {
	var ran []string
	err := New().
		Then("a", func() error {
			ran = append(ran, "a")
			return nil
		}).
		Then("b", func() error {
			ran = append(ran, "b")
			return errors.New("boom")
		}).
		Then("c", func() error {
			ran = append(ran, "c")
			return nil
		}).
		Err()

	require.Error(t, err)
	require.Equal(t, []string{"a", "b"}, ran)
	require.Equal(t, "boom", err.Error())
}

func TestChainAllStepsPass(t *testing.T) {
	err := New().
		Then("a", func() error { return nil }).
		Then("b", func() error { return nil }).
		Err()
	require.NoError(t, err)
}

func TestErrorsJoinsMultipleMessages(t *testing.T) {
	e := Errors{errors.New("one"), errors.New("two")}
	require.Equal(t, "multiple errors: one; two", e.Error())
}
