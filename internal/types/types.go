package types

import "fmt"

// Kind is the declared value type of a variable, parameter or function.
type Kind int

const (
	Void Kind = iota
	Int
	Bool
)

// Size returns the storage size in bytes on our target. Every value that
// lives in memory occupies one 32-bit word.
func (k Kind) Size() int {
	switch k {
	case Int, Bool:
		return 4
	default:
		return 0
	}
}

// IsValue reports whether k describes a storable value (not void).
func (k Kind) IsValue() bool { return k == Int || k == Bool }

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Int:
		return "int"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FromKeyword maps a type keyword of the surface language to its Kind.
func FromKeyword(kw string) (Kind, bool) {
	switch kw {
	case "void":
		return Void, true
	case "int":
		return Int, true
	case "bool":
		return Bool, true
	}
	return Void, false
}

// SlotSize is the size of one stack-frame or data slot.
const SlotSize = 4
