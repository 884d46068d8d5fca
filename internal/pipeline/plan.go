package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"groupwatch/internal"
)

// ErrWriteConflict is returned by a Writer when the id is already stored.
// Apply counts it as a skip.
var ErrWriteConflict = eris.New("group id already stored")

// Lookup reports which of ids are already stored.
type Lookup interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// Writer inserts a group if its id is absent. There is no update or delete.
type Writer interface {
	InsertGroup(ctx context.Context, g internal.CanonicalGroup) error
}

// Plan emits one intent per group: INSERT when the id is not stored, SKIP
// when it is. A failed existence check fails the whole plan.
func Plan(ctx context.Context, lookup Lookup, groups []internal.CanonicalGroup) ([]internal.UpsertIntent, error) {
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	existing, err := lookup.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "plan: check existing ids")
	}

	intents := make([]internal.UpsertIntent, len(groups))
	for i, g := range groups {
		op := internal.OpInsert
		if existing[g.ID] {
			op = internal.OpSkip
		}
		intents[i] = internal.UpsertIntent{Op: op, ID: g.ID, Group: g}
	}
	return intents, nil
}

// Apply executes intents in order. Conflicts become skips and any other
// write error is collected; only cancellation stops the batch.
func Apply(ctx context.Context, w Writer, intents []internal.UpsertIntent) (internal.ApplyResult, error) {
	res := internal.ApplyResult{Failures: []internal.WriteFailure{}}
	for _, in := range intents {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if in.Op != internal.OpInsert {
			res.Skipped++
			continue
		}

		err := w.InsertGroup(ctx, in.Group)
		switch {
		case err == nil:
			res.Inserted++
		case errors.Is(err, ErrWriteConflict):
			res.Skipped++
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return res, err
		default:
			zap.L().Warn("group write rejected",
				zap.String("id", in.ID),
				zap.String("source", in.Group.SourceSheet),
				zap.Int("row", in.Group.SourceRow),
				zap.Error(err),
			)
			res.Failures = append(res.Failures, internal.WriteFailure{ID: in.ID, Err: err.Error()})
		}
	}
	return res, nil
}
