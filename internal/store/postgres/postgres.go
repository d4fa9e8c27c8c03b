// Package postgres implements the core stores on PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/geo"
)

//go:embed schema.sql
var schema string

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DB hands out the store views over one pool or transaction.
type DB struct {
	db DBTX
}

// New wraps a pool or transaction.
func New(db DBTX) *DB {
	return &DB{db: db}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements() {
		if _, err := d.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

func schemaStatements() []string {
	var stmts []string
	for _, s := range strings.Split(schema, ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// Inbox returns the inbox store.
func (d *DB) Inbox() *InboxStore { return &InboxStore{db: d.db} }

// Stations returns the station store.
func (d *DB) Stations() *StationStore { return &StationStore{db: d.db} }

// Photos returns the photo store.
func (d *DB) Photos() *PhotoStore { return &PhotoStore{db: d.db} }

// Users returns the user store.
func (d *DB) Users() *UserStore { return &UserStore{db: d.db} }

// Countries returns the country store.
func (d *DB) Countries() *CountryStore { return &CountryStore{db: d.db} }

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// nearbyBox is the prefilter rectangle for a proximity query.
func nearbyBox(c core.Coordinates, radiusKm float64) geo.Box {
	return geo.BoundingBox(c.Lat, c.Lon, radiusKm)
}

// countWithin scans (lat, lon) rows and counts those within radiusKm of c.
func countWithin(rows pgx.Rows, c core.Coordinates, radiusKm float64) (int, error) {
	defer rows.Close()
	n := 0
	for rows.Next() {
		var p core.Coordinates
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			return 0, err
		}
		if c.Within(p, radiusKm) {
			n++
		}
	}
	return n, rows.Err()
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgBool(b *bool) pgtype.Bool {
	if b == nil {
		return pgtype.Bool{}
	}
	return pgtype.Bool{Bool: *b, Valid: true}
}

func boolPtr(b pgtype.Bool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

func checkAffected(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s not found", what)
	}
	return nil
}
