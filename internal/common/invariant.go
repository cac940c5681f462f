package common

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// strict toggles whether AssertInvariant panics immediately or logs and
// continues when an InvariantDrift condition (§7) is detected. Off by
// default, matching §7's "log in release" default; debug builds and tests
// that want a drift to fail the offending trace immediately should call
// SetStrict(true).
var strict atomic.Bool

// SetStrict enables or disables panic-on-drift behavior process-wide.
func SetStrict(on bool) {
	strict.Store(on)
}

// IsStrict reports the current strict setting.
func IsStrict() bool {
	return strict.Load()
}

// AssertInvariant reports an InvariantDrift condition — a crossed book at
// quiescence, a level aggregate mismatching its orders, or a trader
// position inconsistent with its fill history. These should be impossible
// in a correct implementation (§7). In strict mode it panics so the
// offending trace is caught at the point of drift; otherwise it logs,
// matching the teacher's log.Error().Err(err).Msg(...) idiom, and
// execution continues.
func AssertInvariant(err error, fields map[string]any) {
	if strict.Load() {
		panic(err)
	}
	event := log.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg("invariant drift detected")
}
