package progression

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores progression records.
type Repository interface {
	// Create stores a new record.
	// Returns shared.ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, u UserProgression) error

	// Get loads a record by user ID.
	// Returns shared.ErrNotFound if there is none.
	Get(ctx context.Context, id string) (UserProgression, error)

	// Save overwrites an existing record. Last writer wins.
	// Returns shared.ErrNotFound if the record does not exist.
	Save(ctx context.Context, u UserProgression) error

	// Delete removes the record together with the account.
	Delete(ctx context.Context, id string) error
}
