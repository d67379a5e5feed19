// Package admin provides administrative operations on the dashboard's
// stored state.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ResetTimeout is the maximum duration for reset operations.
const ResetTimeout = 30 * time.Second

// Target is one piece of state a reset clears.
type Target struct {
	Name  string
	Reset func(ctx context.Context) error
}

// ResetAll clears every target in order, stopping at the first failure.
// The loaded dataset is never touched.
func ResetAll(ctx context.Context, targets ...Target) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	for _, t := range targets {
		if err := t.Reset(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", t.Name, err)
		}
		slog.Info("state reset", "target", t.Name)
	}
	return nil
}
