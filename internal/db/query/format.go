package query

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// clauses start on a new line when formatted
var clauses = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "UNION": true, "VALUES": true, "SET": true,
	"JOIN": true, "LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true, "CROSS": true,
}

// joiners keep the following clause keyword on their line ("LEFT JOIN", "DELETE FROM")
var joiners = map[string]bool{
	"LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true, "CROSS": true,
	"DELETE": true, "UNION": true, "NATURAL": true, "FULL": true,
}

// FormatSQL upper-cases keywords, collapses whitespace and starts every main
// clause and statement on its own line. Quoted text and comments are kept.
// Text the lexer cannot read is returned unchanged.
func FormatSQL(text, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Get("sql")
	}
	if lexer == nil {
		return text
	}
	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}

	var (
		b           strings.Builder
		space       bool
		newline     bool
		lineStart   = true
		lineComment bool
		previous    string
	)
	for _, tok := range iterator.Tokens() {
		if tok.Value == "" {
			continue
		}
		if strings.TrimSpace(tok.Value) == "" && !tok.Type.InCategory(chroma.LiteralString) {
			if lineComment {
				newline = true
			} else {
				space = true
			}
			continue
		}

		value := tok.Value
		word := ""
		if tok.Type.InCategory(chroma.Keyword) {
			value = strings.ToUpper(value)
			word = strings.Fields(value)[0]
			if clauses[word] && !joiners[previous] {
				newline = true
			}
		}

		switch {
		case lineStart:
		case newline:
			b.WriteString("\n")
		case space:
			b.WriteString(" ")
		}
		space, newline = false, false

		b.WriteString(value)
		lineStart = strings.HasSuffix(value, "\n")
		lineComment = tok.Type == chroma.CommentSingle && !lineStart

		// comments do not break keyword pairs
		switch {
		case word != "":
			previous = word
		case !tok.Type.InCategory(chroma.Comment):
			previous = ""
		}

		if value == ";" {
			newline = true
		}
	}
	return strings.TrimSpace(b.String())
}
