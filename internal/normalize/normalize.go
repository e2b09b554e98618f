// Package normalize builds canonical contacts from CSV rows and identity-provider profiles.
package normalize

import (
	"strings"

	"gitlab.com/dirk.krummacker/beetagged/internal/linkedin"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// Candidate is a normalized contact together with the data of its originating document that is
// needed for tag derivation but not stored on the contact.
type Candidate struct {
	Contact model.Contact
	School  string
}

// FullName returns the explicit name if it is non-empty, otherwise first and last name joined by a
// blank. The result is trimmed.
func FullName(name, first, last string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// FromRow builds a candidate from one CSV row. It returns false when the row yields no name.
func FromRow(row linkedin.Row, cols linkedin.Columns, source string) (Candidate, bool) {
	name := FullName(
		cols.Get(row, linkedin.FieldName),
		cols.Get(row, linkedin.FieldFirstName),
		cols.Get(row, linkedin.FieldLastName),
	)
	if name == "" {
		return Candidate{}, false
	}
	return Candidate{Contact: model.Contact{
		Name:        name,
		Email:       strings.ToLower(cols.Get(row, linkedin.FieldEmail)),
		Company:     cols.Get(row, linkedin.FieldCompany),
		Position:    cols.Get(row, linkedin.FieldPosition),
		Location:    cols.Get(row, linkedin.FieldLocation),
		Phone:       cols.Get(row, linkedin.FieldPhone),
		ConnectedOn: cols.Get(row, linkedin.FieldConnectedOn),
		ProfileURL:  cols.Get(row, linkedin.FieldURL),
		Source:      source,
	}}, true
}

// FromProfile builds a candidate from an identity-provider profile. It returns false when the
// profile yields no name.
func FromProfile(p model.Profile, source string) (Candidate, bool) {
	name := FullName(p.Name, p.FirstName, p.LastName)
	if name == "" {
		return Candidate{}, false
	}
	company, position := currentEmployment(p.Work)
	return Candidate{
		Contact: model.Contact{
			Name:       name,
			Email:      strings.ToLower(strings.TrimSpace(p.Email)),
			Company:    company,
			Position:   position,
			Location:   strings.TrimSpace(p.LocationName()),
			ProfileURL: strings.TrimSpace(p.Link),
			Picture:    strings.TrimSpace(p.PictureURL()),
			Source:     source,
		},
		School: firstSchool(p.Education),
	}, true
}

// currentEmployment returns employer and position of the first work entry without an end date.
// If every entry has ended, the first entry with an employer is used.
func currentEmployment(work []model.WorkEntry) (company, position string) {
	var fallback *model.WorkEntry
	for i := range work {
		w := &work[i]
		if refName(w.Employer) == "" {
			continue
		}
		if strings.TrimSpace(w.EndDate) == "" {
			return refName(w.Employer), refName(w.Position)
		}
		if fallback == nil {
			fallback = w
		}
	}
	if fallback == nil {
		return "", ""
	}
	return refName(fallback.Employer), refName(fallback.Position)
}

func firstSchool(education []model.EducationEntry) string {
	for _, e := range education {
		if name := refName(e.School); name != "" {
			return name
		}
	}
	return ""
}

func refName(ref *model.NamedRef) string {
	if ref == nil {
		return ""
	}
	return strings.TrimSpace(ref.Name)
}
