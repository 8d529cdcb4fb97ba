package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between supported SQL engines.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of '?'.
	Numbered bool
	// Schema is applied statement by statement when the store opens.
	Schema []string
}

// SQLite is the dialect used with modernc.org/sqlite.
var SQLite = Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			viewed INTEGER NOT NULL DEFAULT 0,
			parent_id INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS items_kind_idx ON items(kind)`,
		`CREATE INDEX IF NOT EXISTS items_parent_idx ON items(parent_id)`,
		`CREATE TABLE IF NOT EXISTS item_sequence (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			position INTEGER PRIMARY KEY,
			item_id INTEGER NOT NULL
		)`,
	},
}

// Postgres is the dialect used with pgx through database/sql.
var Postgres = Dialect{
	Name:     "postgres",
	Numbered: true,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			viewed BOOLEAN NOT NULL DEFAULT FALSE,
			parent_id BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS items_kind_idx ON items(kind)`,
		`CREATE INDEX IF NOT EXISTS items_parent_idx ON items(parent_id)`,
		`CREATE TABLE IF NOT EXISTS item_sequence (
			name TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			position INTEGER PRIMARY KEY,
			item_id BIGINT NOT NULL
		)`,
	},
}

// Rebind rewrites '?' placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
