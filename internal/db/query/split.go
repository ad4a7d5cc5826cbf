package query

import "strings"

// SplitStatements splits console text into statements on semicolons that are
// outside quotes and comments. Blank statements are dropped.
func SplitStatements(text string) []string {
	var (
		statements []string
		current    strings.Builder
		quote      rune
		lineCmt    bool
		blockCmt   bool
	)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" && stripLeadingComments(s) != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch {
		case lineCmt:
			if r == '\n' {
				lineCmt = false
			}
		case blockCmt:
			if r == '*' && next == '/' {
				blockCmt = false
				current.WriteRune(r)
				r = next
				i++
			}
		case quote != 0:
			if r == '\\' && quote != '`' && next != 0 {
				current.WriteRune(r)
				r = next
				i++
			} else if r == quote {
				if next == quote {
					current.WriteRune(r)
					i++
				} else {
					quote = 0
				}
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '-' && next == '-', r == '#':
			lineCmt = true
		case r == '/' && next == '*':
			blockCmt = true
		case r == ';':
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()

	return statements
}
