package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSQL(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "clauses and statements",
			text:     "select foo, bar from baz where foo = 1 order by bar;select 2",
			expected: "SELECT foo, bar\nFROM baz\nWHERE foo = 1\nORDER BY bar;\nSELECT 2",
		},
		{
			name:     "whitespace collapsed",
			text:     "select   foo\n\n   from baz",
			expected: "SELECT foo\nFROM baz",
		},
		{
			name:     "join keeps its pair",
			text:     "select a from t left join u on t.id = u.id",
			expected: "SELECT a\nFROM t\nLEFT JOIN u ON t.id = u.id",
		},
		{
			name:     "delete from on one line",
			text:     "delete from t where b = 1",
			expected: "DELETE FROM t\nWHERE b = 1",
		},
		{
			name:     "update set",
			text:     "update t set b = 2 where a = 1",
			expected: "UPDATE t\nSET b = 2\nWHERE a = 1",
		},
		{
			name:     "quoted text kept",
			text:     "select 'from  where' from baz",
			expected: "SELECT 'from  where'\nFROM baz",
		},
		{
			name:     "line comment ends the line",
			text:     "select foo -- note\nfrom baz",
			expected: "SELECT foo -- note\nFROM baz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatSQL(tt.text, "mysql"))
		})
	}
}
