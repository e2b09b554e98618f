package linkedin

import "strings"

// headerSearchLines is how many leading lines are examined for the header row. The Connections
// export starts with a short "Notes:" preamble.
const headerSearchLines = 10

// Table is a parsed export file.
type Table struct {
	Headers Row
	Columns Columns
	Rows    []Row
}

// Read decodes and tokenizes an export file with the default header variations.
func Read(data []byte) (*Table, error) {
	return defaultResolver.Read(data)
}

// Read decodes and tokenizes an export file. The header row is the first line, among the leading
// ones, from which a contact name can be resolved; if there is none, the first line is used. Blank
// lines are dropped. An empty file yields a table without rows.
func (r *Resolver) Read(data []byte) (*Table, error) {
	text, err := Decode(data)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return &Table{Columns: r.Resolve(nil)}, nil
	}

	headerAt := 0
	for i := 0; i < len(lines) && i < headerSearchLines; i++ {
		fields := ParseLine(lines[i])
		if len(fields) >= 2 && r.Resolve(fields).HasName() {
			headerAt = i
			break
		}
	}

	headers := ParseLine(lines[headerAt])
	table := &Table{
		Headers: headers,
		Columns: r.Resolve(headers),
		Rows:    make([]Row, 0, len(lines)-headerAt-1),
	}
	for _, line := range lines[headerAt+1:] {
		table.Rows = append(table.Rows, ParseLine(line))
	}
	return table, nil
}
