// Package linkedin reads LinkedIn CSV exports: it tokenizes lines, resolves the varying column
// headers of the different export formats, and decodes the file's character set.
package linkedin

import "strings"

// Row is the ordered sequence of fields of one CSV line.
type Row []string

// ParseLine splits one CSV line into trimmed fields. A double quote toggles quoted mode, in which
// commas are literal text; a doubled quote inside quoted mode yields one literal quote. Malformed
// quoting never fails, the line is tokenized as far as it goes.
func ParseLine(line string) Row {
	line = strings.TrimSuffix(line, "\r")
	var fields Row
	var current strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"' && inQuotes && i+1 < len(line) && line[i+1] == '"':
			current.WriteByte('"')
			i++
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}
