package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SequenceQuerier is satisfied by *pgxpool.Pool and pgx.Tx, so numbers can be
// reserved either standalone or inside the transaction that uses them.
type SequenceQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NextDocNumber atomically reserves the next per-year sequence value for the
// given document kind and formats it as <PREFIX>-<year>-<0-padded seq>.
// The counter row is upserted in a single statement, so concurrent callers
// never observe the same value. Sequences are unique but not gap-free: a
// rolled-back caller burns its value.
func NextDocNumber(ctx context.Context, q SequenceQuerier, prefix string, at time.Time) (string, error) {
	if prefix == "" {
		return "", errors.New("shared: document prefix required")
	}
	year := at.Year()
	var seq int64
	err := q.QueryRow(ctx, `INSERT INTO doc_sequences (kind, year, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (kind, year) DO UPDATE SET last_value = doc_sequences.last_value + 1
RETURNING last_value`, prefix, year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("shared: next %s sequence: %w", prefix, err)
	}
	return FormatDocNumber(prefix, year, int(seq)), nil
}

// FormatDocNumber renders a document number as <PREFIX>-<year>-<0-padded seq>.
func FormatDocNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}
