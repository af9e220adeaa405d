package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "placeholders kept",
			query: "SELECT id FROM items WHERE external_id = $1 AND user_id = $12",
			want:  "SELECT id FROM items WHERE external_id = $1 AND user_id = $12",
		},
		{
			name:  "string literal",
			query: "UPDATE sync_tasks SET status = 'running' WHERE id = $1",
			want:  "UPDATE sync_tasks SET status = '?' WHERE id = $1",
		},
		{
			name:  "escaped quote",
			query: "SELECT 'it''s' FROM t",
			want:  "SELECT '?' FROM t",
		},
		{
			name:  "numeric literal",
			query: "SELECT * FROM t LIMIT 20 OFFSET 4.5",
			want:  "SELECT * FROM t LIMIT ? OFFSET ?",
		},
		{
			name:  "identifier digits kept",
			query: "SELECT col1 FROM t2",
			want:  "SELECT col1 FROM t2",
		},
		{
			name:  "whitespace collapsed",
			query: "\n\t\tSELECT id\n\t\tFROM items\n",
			want:  "SELECT id FROM items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeQuery(tt.query))
		})
	}
}

func TestSanitizeQuery_Truncates(t *testing.T) {
	got := sanitizeQuery("SELECT " + strings.Repeat("a, ", 200) + "b FROM t")
	assert.Len(t, got, 259)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestExtractSQLVerb(t *testing.T) {
	assert.Equal(t, "SELECT", extractSQLVerb("  select id from t"))
	assert.Equal(t, "INSERT", extractSQLVerb("\n\tINSERT INTO t VALUES ($1)"))
	assert.Equal(t, "WITH", extractSQLVerb("WITH next AS (SELECT 1) UPDATE t SET x = 1"))
	assert.Equal(t, "", extractSQLVerb("   "))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(errors.Join(errors.New("insert"), &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
