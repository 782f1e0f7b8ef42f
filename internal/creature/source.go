package creature

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyakumasu/pokedrill/internal/models"
)

// Source resolves creature ids to display data.
type Source interface {
	// FetchRandom picks a creature for a session at level (0 = no level)
	FetchRandom(ctx context.Context, level int) (models.Creature, error)
	FetchByID(ctx context.Context, id int) (models.Creature, error)
	// FetchMany keeps the order of ids; empty input makes no request
	FetchMany(ctx context.Context, ids []int) ([]models.Creature, error)
}

// ErrNotFound is wrapped by FetchError when the API has no such creature
var ErrNotFound = errors.New("creature not found")

// FetchError is returned once every attempt to resolve a creature failed.
type FetchError struct {
	ID       int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch creature %d failed after %d attempt(s): %v", e.ID, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
