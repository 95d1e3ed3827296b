package core

import (
	"reflect"

	"github.com/encodeous/rayon/state"
)

// AddDistance saturates at the infinity sentinel.
func AddDistance(a, b uint8) uint8 {
	if a >= state.Infinity || b >= state.Infinity {
		return state.Infinity
	}
	return uint8(min(uint16(state.Infinity), uint16(a)+uint16(b)))
}

func Get[T state.Module](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}
