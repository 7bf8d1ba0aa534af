package postgres

import (
	"fmt"
	"strings"

	options "github.com/kart-io/newslens/pkg/options/postgres"
)

// BuildDSN creates a key=value PostgreSQL DSN:
//
//	host=localhost port=5432 user=postgres password=secret dbname=newslens sslmode=disable
//
// The password is quoted when it contains spaces, quotes or backslashes.
func BuildDSN(opts *options.Options) string {
	if opts == nil {
		return ""
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host,
		opts.Port,
		opts.Username,
		quoteValue(opts.Password),
		opts.Database,
		opts.SSLMode,
	)
}

func quoteValue(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " '\\") {
		return value
	}
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")
	return "'" + escaped + "'"
}
