package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	options "github.com/kart-io/newslens/pkg/options/postgres"
)

func TestBuildDSN(t *testing.T) {
	opts := options.NewOptions()
	opts.Host = "db"
	opts.Port = 5433
	opts.Username = "news"
	opts.Password = "secret"
	opts.Database = "newslens"
	opts.SSLMode = "disable"

	assert.Equal(t, "host=db port=5433 user=news password=secret dbname=newslens sslmode=disable", BuildDSN(opts))
	assert.Empty(t, BuildDSN(nil))
}

func TestQuoteValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "''"},
		{"plain", "plain"},
		{"with space", "'with space'"},
		{"it's", `'it\'s'`},
		{`back\slash`, `'back\\slash'`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, quoteValue(tt.in))
		})
	}
}
