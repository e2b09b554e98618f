package linkedin

import "strings"

// Field is a canonical contact field that a CSV column can be mapped to.
type Field string

const (
	FieldFirstName   Field = "firstName"
	FieldLastName    Field = "lastName"
	FieldName        Field = "name"
	FieldEmail       Field = "email"
	FieldCompany     Field = "company"
	FieldPosition    Field = "position"
	FieldLocation    Field = "location"
	FieldPhone       Field = "phone"
	FieldConnectedOn Field = "connectedOn"
	FieldURL         Field = "url"
)

// NotFound is returned by Index when no header matches a field.
const NotFound = -1

// resolveOrder is the order in which Resolve assigns columns. A column claimed by an earlier
// field is not available to later ones, so "First Name" never doubles as the full name and
// "Email Address" never doubles as an address.
var resolveOrder = []Field{
	FieldFirstName, FieldLastName, FieldName, FieldEmail, FieldCompany,
	FieldPosition, FieldLocation, FieldPhone, FieldConnectedOn, FieldURL,
}

// DefaultVariations lists the header texts accepted for each field, in priority order. They cover
// the Connections and Contacts exports of LinkedIn as well as hand-made spreadsheets.
var DefaultVariations = map[Field][]string{
	FieldFirstName:   {"first name", "firstname", "given name"},
	FieldLastName:    {"last name", "lastname", "surname", "family name"},
	FieldName:        {"full name", "fullname", "contact name", "display name", "name"},
	FieldEmail:       {"email address", "email", "e-mail", "primary email"},
	FieldCompany:     {"company", "companies", "current company", "organization", "employer", "workplace"},
	FieldPosition:    {"position", "current position", "job title", "title", "role"},
	FieldLocation:    {"location", "current location", "city", "region", "address"},
	FieldPhone:       {"phone", "mobile", "telephone"},
	FieldConnectedOn: {"connected on", "connection date", "date connected", "created at", "createdat"},
	FieldURL:         {"profile url", "linkedin url", "url", "profiles", "profile link"},
}

// exactVariations match only a header that equals them. A bare "name" would otherwise claim
// columns such as "Company Name" or "Middle Name".
var exactVariations = map[string]bool{"name": true}

// Columns maps fields to column indexes of a header row.
type Columns map[Field]int

// Has reports whether the field was resolved to a column.
func (c Columns) Has(field Field) bool {
	idx, ok := c[field]
	return ok && idx != NotFound
}

// Get returns the trimmed value of the field in the row. Unresolved fields and short rows yield
// the empty string.
func (c Columns) Get(row Row, field Field) string {
	idx, ok := c[field]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// HasName reports whether a contact name can be built from the columns.
func (c Columns) HasName() bool {
	return c.Has(FieldName) || c.Has(FieldFirstName) || c.Has(FieldLastName)
}

// Resolver maps header rows to canonical fields.
type Resolver struct {
	variations map[Field][]string
}

// NewResolver creates a resolver. Variations given for a field replace the defaults of that
// field; fields not mentioned keep their defaults.
func NewResolver(variations map[Field][]string) *Resolver {
	merged := make(map[Field][]string, len(DefaultVariations))
	for f, v := range DefaultVariations {
		merged[f] = v
	}
	for f, v := range variations {
		lowered := make([]string, 0, len(v))
		for _, s := range v {
			lowered = append(lowered, strings.ToLower(strings.TrimSpace(s)))
		}
		merged[f] = lowered
	}
	return &Resolver{variations: merged}
}

var defaultResolver = NewResolver(nil)

// Index returns the index of the first header that contains one of the default variations of the
// field, trying the variations in priority order, or NotFound. A bare "name" must match the whole
// header.
func Index(headers []string, field Field) int {
	return defaultResolver.Index(headers, field)
}

// Index returns the index of the first header that contains one of the field's variations, trying
// the variations in priority order, or NotFound.
func (r *Resolver) Index(headers []string, field Field) int {
	return r.find(normalizeHeaders(headers), field, nil)
}

// Resolve maps every known field to a column of the header row. Each column is assigned to at
// most one field.
func (r *Resolver) Resolve(headers []string) Columns {
	normalized := normalizeHeaders(headers)
	claimed := make(map[int]bool, len(headers))
	cols := make(Columns, len(resolveOrder))
	for _, field := range resolveOrder {
		idx := r.find(normalized, field, claimed)
		cols[field] = idx
		if idx != NotFound {
			claimed[idx] = true
		}
	}
	return cols
}

func (r *Resolver) find(headers []string, field Field, claimed map[int]bool) int {
	for _, variation := range r.variations[field] {
		for i, h := range headers {
			if claimed[i] {
				continue
			}
			if h == variation || !exactVariations[variation] && strings.Contains(h, variation) {
				return i
			}
		}
	}
	return NotFound
}

func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}
