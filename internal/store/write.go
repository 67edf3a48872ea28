package store

import (
	"context"
	"fmt"
)

// WriteIntent records an intent. A duplicate ID is ignored.
func (s *Store) WriteIntent(ctx context.Context, in Intent) error {
	if err := mustSeq(in.Seq); err != nil {
		return fmt.Errorf("write intent %s: %w", in.ID, err)
	}
	args, err := marshalFields(in.Args)
	if err != nil {
		return fmt.Errorf("write intent %s: marshal args: %w", in.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intents (id, seq, op, args)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, in.ID, in.Seq, in.Op, args)
	if err != nil {
		return fmt.Errorf("write intent %s: %w", in.ID, err)
	}
	return nil
}

// WriteOutcome records the outcome of an intent. Each intent has at most one
// outcome; a second write for the same intent is ignored.
func (s *Store) WriteOutcome(ctx context.Context, out Outcome) error {
	if err := mustSeq(out.Seq); err != nil {
		return fmt.Errorf("write outcome for %s: %w", out.IntentID, err)
	}
	result, err := marshalFields(out.Result)
	if err != nil {
		return fmt.Errorf("write outcome for %s: marshal result: %w", out.IntentID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes (intent_id, seq, kind, message, result)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(intent_id) DO NOTHING
	`, out.IntentID, out.Seq, out.Kind, out.Message, result)
	if err != nil {
		return fmt.Errorf("write outcome for %s: %w", out.IntentID, err)
	}
	return nil
}
