// Package pg wraps pgx/v5 connection pooling, goose migrations, and health
// checks behind a small surface so the rest of the application never touches
// driver setup directly.
package pg
