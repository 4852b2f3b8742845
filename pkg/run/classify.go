package run

import (
	"fmt"

	"github.com/tracenav/tracenav/internal/model"
	"github.com/tracenav/tracenav/pkg/intermediate"
)

// classify reduces one envelope to its normalized record and target category.
// Envelopes with an unrecognized kind map to CategoryNone and are dropped by
// the caller; they are counted, not errors.
func classify(env *model.Envelope) (intermediate.Record, intermediate.Category, error) {
	kind := env.Kind()
	cat := intermediate.Classify(kind)
	if cat == intermediate.CategoryNone {
		return intermediate.Record{}, intermediate.CategoryNone, nil
	}

	meta, err := env.Metadata(kind)
	if err != nil {
		return intermediate.Record{}, intermediate.CategoryNone,
			fmt.Errorf("extract %s metadata: %w", kind, err)
	}

	rec := intermediate.Record{
		Kind:      kind,
		Rank:      env.Rank,
		Timestamp: env.Timestamp,
		Thread:    env.Thread,
		Pathname:  env.Pathname,
		LineNo:    env.LineNo,
		Metadata:  meta,
		Payload:   env.Payload,
	}
	if cid := env.CompileID(); cid != nil {
		s := cid.String()
		rec.CompileID = &s
	}
	return rec, cat, nil
}
