// Package dbschema validates and quotes the Postgres schema used by portal's stores.
package dbschema

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Default is the schema created by the embedded migrations.
const Default = "portal"

// ErrInvalidSchema is returned for empty or unsafe schema names.
var ErrInvalidSchema = errors.New("dbschema: invalid schema identifier")

var identRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Normalize trims schema and checks it is a plain identifier.
func Normalize(schema string) (string, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" || !identRE.MatchString(schema) {
		return "", ErrInvalidSchema
	}
	return schema, nil
}

// Table returns a safely quoted schema.table reference.
func Table(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
