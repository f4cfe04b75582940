package postgres

// rowScanner is implemented by both pgx.Row and pgx.Rows, so scan helpers
// work against either a QueryRow result or a Query iteration row.
type rowScanner interface {
	Scan(dest ...any) error
}
