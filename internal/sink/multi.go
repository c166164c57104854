package sink

import (
	"context"
	"errors"

	"github.com/verte-zerg/neolog/internal/experiment"
	"github.com/verte-zerg/neolog/internal/model"
)

// Multi writes every snapshot to all of its sinks. A failing sink does
// not stop the others; their errors are joined.
type Multi []experiment.Sink

// WriteLog implements experiment.Sink.
func (m Multi) WriteLog(ctx context.Context, rec model.Record) error {
	var errs []error
	for _, w := range m {
		if w == nil {
			continue
		}
		if err := w.WriteLog(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
