package usecase

import (
	"context"
	"errors"
	"fmt"

	"ragengine/internal/domain"
)

// classify maps an adapter failure to the engine's error taxonomy.
// Context expiry and cancellation win over the stage sentinel, so a
// deadline hit during an embedding call reports ErrTimeout rather than
// ErrEmbedding.
func classify(err, stage error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", stage, err)
}
