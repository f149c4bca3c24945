package cursor

import (
	"errors"
	"math"
)

// ErrInvalidArgument is returned when a position is seeded with a negative value.
var ErrInvalidArgument = errors.New("position must be a non-negative integer")

// Position is a saturating cursor over a buffered list.
// Increments stop at math.MaxInt and decrements stop at zero.
// It is not safe for concurrent use; owners serialize access.
type Position struct {
	value int
}

// New creates a position starting at seed.
func New(seed int) (*Position, error) {
	if seed < 0 {
		return nil, ErrInvalidArgument
	}
	return &Position{value: seed}, nil
}

// PreIncrement advances the cursor and returns the new value.
func (p *Position) PreIncrement() int {
	if p.value == math.MaxInt {
		return p.value
	}
	p.value++
	return p.value
}

// PreDecrement moves the cursor back and returns the new value.
func (p *Position) PreDecrement() int {
	if p.value == 0 {
		return p.value
	}
	p.value--
	return p.value
}

// PostIncrement advances the cursor and returns the value it had before.
func (p *Position) PostIncrement() int {
	if p.value == math.MaxInt {
		return p.value
	}
	old := p.value
	p.value++
	return old
}

// PostDecrement moves the cursor back and returns the value it had before.
func (p *Position) PostDecrement() int {
	if p.value == 0 {
		return p.value
	}
	old := p.value
	p.value--
	return old
}

func (p *Position) Get() int {
	return p.value
}

// Reset puts the cursor back to zero.
func (p *Position) Reset() {
	p.value = 0
}
