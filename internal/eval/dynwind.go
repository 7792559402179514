package eval

import (
	"github.com/lambdust-scheme/lambdust/internal/value"
)

// Winder is one active dynamic-wind's before/after pair (R7RS-small
// `dynamic-wind`). Winders form a persistent chain exactly like Kont, so a
// captured continuation can snapshot "which dynamic extents were active
// at capture time" as a single pointer (SPEC_FULL.md §C).
type Winder struct {
	Before, After value.Value
	Next          *Winder
}

func newWinder() *Winder { return nil }

// dynamicWind implements `(dynamic-wind before thunk after)`: before runs
// on entry, thunk runs with the wind pushed, after runs on exit — whether
// the exit is normal return or a propagated error — per R7RS-small and
// SPEC_FULL.md §C's re-entry rule (before/after may run multiple times
// across continuation re-entries; see transitionWinds).
func (ev *Evaluator) dynamicWind(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, arityError("dynamic-wind", 3, len(args))
	}
	before, thunk, after := args[0], args[1], args[2]

	if _, err := ev.applySync(before, nil); err != nil {
		return nil, err
	}
	ev.winds = &Winder{Before: before, After: after, Next: ev.winds}

	result, thunkErr := ev.applySync(thunk, nil)

	// A continuation invoked from inside thunk may already have popped
	// ev.winds past this frame (an escape); only pop/after here if this
	// wind is still the innermost one (the common case of a normal
	// return or an error that didn't cross a continuation jump).
	if ev.winds != nil && ev.winds.Before == before && ev.winds.After == after {
		ev.winds = ev.winds.Next
		if _, err := ev.applySync(after, nil); err != nil {
			if thunkErr != nil {
				return nil, thunkErr
			}
			return nil, err
		}
	}
	return result, thunkErr
}

// transitionWinds runs the after-thunks of every wind active in ev.winds
// but not in target, from innermost to outermost, then the before-thunks
// of every wind active in target but not currently active, from outermost
// to innermost — the R7RS dynamic-wind re-entry rule (SPEC_FULL.md §C).
func (ev *Evaluator) transitionWinds(target *Winder) error {
	ancestor := commonWinderAncestor(ev.winds, target)

	for w := ev.winds; w != ancestor; w = w.Next {
		ev.winds = w.Next
		if _, err := ev.applySync(w.After, nil); err != nil {
			return err
		}
	}

	var toEnter []*Winder
	for w := target; w != ancestor; w = w.Next {
		toEnter = append(toEnter, w)
	}
	for i := len(toEnter) - 1; i >= 0; i-- {
		if _, err := ev.applySync(toEnter[i].Before, nil); err != nil {
			return err
		}
		ev.winds = toEnter[i]
	}
	return nil
}

func commonWinderAncestor(a, b *Winder) *Winder {
	da, db := winderDepth(a), winderDepth(b)
	for da > db {
		a = a.Next
		da--
	}
	for db > da {
		b = b.Next
		db--
	}
	for a != b {
		a = a.Next
		b = b.Next
	}
	return a
}

func winderDepth(w *Winder) int {
	n := 0
	for ; w != nil; w = w.Next {
		n++
	}
	return n
}
