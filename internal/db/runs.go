package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Run struct {
	ID         string
	Appendage  string
	FinishedAt string
	Records    int64
}

// LatestRun returns the most recently committed run, optionally restricted to appendages
// containing the given text.
func LatestRun(ctx context.Context, db *sql.DB, d Dialect, appendage string) (Run, error) {
	q := fmt.Sprintf(`
SELECT run_id, appendage, finished_at, records
FROM %s
WHERE appendage LIKE '%%' || %s || '%%'
ORDER BY finished_at DESC
LIMIT 1`, runsTable, d.placeholder(1))
	var r Run
	err := db.QueryRowContext(ctx, q, appendage).Scan(&r.ID, &r.Appendage, &r.FinishedAt, &r.Records)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("no run found for appendage like %q", appendage)
	}
	return r, err
}
