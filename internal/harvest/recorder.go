package harvest

import (
	"context"

	"github.com/JakeFAU/douyin-harvester/internal/metrics"
	"github.com/JakeFAU/douyin-harvester/internal/storage"
)

// countingRecorder forwards rows to a backend and counts them.
type countingRecorder struct {
	backend storage.Backend
	kind    string
	saved   int
}

func (r *countingRecorder) Save(ctx context.Context, values []any) error {
	if err := r.backend.Save(ctx, values); err != nil {
		return err
	}
	r.saved++
	metrics.ObserveRecord(r.kind)
	return nil
}
