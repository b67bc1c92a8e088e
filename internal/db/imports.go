package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ais-trajectory/internal/ais"
)

// ResolveLatestBatch returns the batch_id with the most recent imported_at
// from public.ais_imports for the given category.
func ResolveLatestBatch(ctx context.Context, db *sql.DB, c ais.Category) (string, error) {
	q := `
SELECT batch_id
FROM public.ais_imports
WHERE category = $1
ORDER BY imported_at DESC
LIMIT 1`
	var batch sql.NullString
	if err := db.QueryRowContext(ctx, q, string(c)).Scan(&batch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("no import found for category %q", c)
		}
		return "", err
	}
	if !batch.Valid || batch.String == "" {
		return "", fmt.Errorf("empty batch_id for category %q", c)
	}
	return batch.String, nil
}
