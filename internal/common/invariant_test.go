package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertInvariantPanicsWhenStrict(t *testing.T) {
	SetStrict(true)
	defer SetStrict(false)

	assert.Panics(t, func() {
		AssertInvariant(ErrLevelDrift, map[string]any{"symbol": "AAPL"})
	})
}

func TestAssertInvariantLogsAndContinuesByDefault(t *testing.T) {
	SetStrict(false)
	assert.NotPanics(t, func() {
		AssertInvariant(ErrLevelDrift, map[string]any{"symbol": "AAPL"})
	})
}
