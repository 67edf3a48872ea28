package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ReadJournal returns the most recent limit entries in seq order. A limit of
// zero or less returns the whole journal.
//
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadJournal(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, seq, intent_id, op, kind, message, data FROM (
			SELECT 'intent' AS type, i.seq, i.id AS intent_id, i.op, '' AS kind, '' AS message, i.args AS data
			FROM intents i
			UNION ALL
			SELECT 'outcome', o.seq, o.intent_id, i.op, o.kind, o.message, o.result
			FROM outcomes o
			JOIN intents i ON i.id = o.intent_id
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e    Entry
			data string
		)
		if err := rows.Scan(&e.Type, &e.Seq, &e.IntentID, &e.Op, &e.Kind, &e.Message, &data); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Data = json.RawMessage(data)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// ReadOutcome returns the outcome recorded for intentID.
// Returns sql.ErrNoRows (wrapped) when the intent has no outcome yet.
func (s *Store) ReadOutcome(ctx context.Context, intentID string) (Outcome, error) {
	var (
		out    Outcome
		result string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT intent_id, seq, kind, message, result
		FROM outcomes
		WHERE intent_id = ?
	`, intentID).Scan(&out.IntentID, &out.Seq, &out.Kind, &out.Message, &result)
	if err != nil {
		return Outcome{}, fmt.Errorf("read outcome for %s: %w", intentID, err)
	}

	if err := json.Unmarshal([]byte(result), &out.Result); err != nil {
		return Outcome{}, fmt.Errorf("read outcome for %s: unmarshal result: %w", intentID, err)
	}
	return out, nil
}

// Pending returns intents that have no outcome, in seq order. A non-empty
// result after a clean shutdown means a request was in flight when the
// process died.
func (s *Store) Pending(ctx context.Context) ([]Intent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.seq, i.op, i.args
		FROM intents i
		LEFT JOIN outcomes o ON o.intent_id = i.id
		WHERE o.intent_id IS NULL
		ORDER BY i.seq ASC, i.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending intents: %w", err)
	}
	defer rows.Close()

	intents := []Intent{}
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending intents: %w", err)
	}
	return intents, nil
}

func scanIntent(rows *sql.Rows) (Intent, error) {
	var (
		in   Intent
		args string
	)
	if err := rows.Scan(&in.ID, &in.Seq, &in.Op, &args); err != nil {
		return Intent{}, fmt.Errorf("scan intent: %w", err)
	}
	if err := json.Unmarshal([]byte(args), &in.Args); err != nil {
		return Intent{}, fmt.Errorf("unmarshal args for %s: %w", in.ID, err)
	}
	return in, nil
}
