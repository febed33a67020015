// Package cards produces 75-ball bingo grids.
package cards

import (
	"context"
	"math/rand/v2"
)

const (
	// GridSize is the number of squares on a card, stored row-major.
	GridSize   = 25
	columns    = 5
	columnSpan = 15
	// FreeSquare marks the centre square.
	FreeSquare = 0
	centre     = 12
)

// Generator is the card-generation collaborator used by the purchase flow.
type Generator interface {
	Generate(ctx context.Context, count int) ([][]int64, error)
}

// RandomGenerator draws each column B,I,N,G,O from its own 15-number range without repeats.
type RandomGenerator struct{}

func NewRandomGenerator() *RandomGenerator { return &RandomGenerator{} }

func (g *RandomGenerator) Generate(ctx context.Context, count int) ([][]int64, error) {
	out := make([][]int64, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, newGrid())
	}
	return out, nil
}

func newGrid() []int64 {
	grid := make([]int64, GridSize)
	for col := 0; col < columns; col++ {
		base := int64(col*columnSpan + 1)
		picks := rand.Perm(columnSpan)[:columns]
		for row := 0; row < columns; row++ {
			grid[row*columns+col] = base + int64(picks[row])
		}
	}
	grid[centre] = FreeSquare
	return grid
}

// Valid reports whether grid is a well-formed card.
func Valid(grid []int64) bool {
	if len(grid) != GridSize || grid[centre] != FreeSquare {
		return false
	}
	seen := make(map[int64]bool, GridSize)
	for i, n := range grid {
		if i == centre {
			continue
		}
		col := i % columns
		lo, hi := int64(col*columnSpan+1), int64((col+1)*columnSpan)
		if n < lo || n > hi || seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}
