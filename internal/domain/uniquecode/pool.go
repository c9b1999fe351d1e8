// Package uniquecode allocates the two-digit disambiguation codes attached to
// orders. Payers add the code to a bank transfer amount so that manual
// reconciliation can tell two transfers of the same price apart.
package uniquecode

import (
	"fmt"
	"slices"

	"github.com/go-faster/errors"
)

// DefaultPoolSize is the number of codes in the default pool ("01".."10").
const DefaultPoolSize = 10

// codeWidth is the fixed number of digits in every code.
const codeWidth = 2

// ErrInvalidFormat is returned by ValidateFormat for codes that are not
// exactly two characters long.
var ErrInvalidFormat = errors.New("invalid unique code format")

// Pool is the finite, ordered set of allocatable codes: the zero-padded
// decimal strings for 1 through size inclusive.
type Pool struct {
	size  int
	codes []string
}

// NewPool returns a pool of the given size. Sizes outside 1..99 cannot be
// represented with two digits and fall back to DefaultPoolSize.
func NewPool(size int) Pool {
	if size < 1 || size > 99 {
		size = DefaultPoolSize
	}
	codes := make([]string, size)
	for i := range size {
		codes[i] = Format(i + 1)
	}
	return Pool{size: size, codes: codes}
}

// DefaultPool returns the ten-code pool used by the service.
func DefaultPool() Pool {
	return NewPool(DefaultPoolSize)
}

// Format renders n as a two-digit zero-padded decimal string.
func Format(n int) string {
	return fmt.Sprintf("%0*d", codeWidth, n)
}

// ValidateFormat reports whether code has the shape of a unique code. It does
// not check pool membership.
func ValidateFormat(code string) error {
	if len(code) != codeWidth {
		return ErrInvalidFormat
	}
	return nil
}

// Size returns the number of codes in the pool.
func (p Pool) Size() int {
	return p.size
}

// Codes returns a copy of all codes in ascending order.
func (p Pool) Codes() []string {
	return slices.Clone(p.codes)
}

// Contains reports whether code belongs to the pool.
func (p Pool) Contains(code string) bool {
	_, found := slices.BinarySearch(p.codes, code)
	return found
}

// Available returns the pool codes not present in used, ascending.
func (p Pool) Available(used []string) []string {
	taken := make(map[string]struct{}, len(used))
	for _, c := range used {
		taken[c] = struct{}{}
	}
	out := make([]string, 0, p.size)
	for _, c := range p.codes {
		if _, ok := taken[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Used normalizes a list of persisted codes: duplicates and codes outside
// the pool are dropped and the result is sorted ascending.
func (p Pool) Used(persisted []string) []string {
	out := make([]string, 0, len(persisted))
	for _, c := range persisted {
		if p.Contains(c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
