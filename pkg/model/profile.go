package model

// Profile is a person document as returned by the Facebook Graph API. Every nested field may be
// absent.
type Profile struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	FirstName string           `json:"first_name,omitempty"`
	LastName  string           `json:"last_name,omitempty"`
	Email     string           `json:"email,omitempty"`
	Link      string           `json:"link,omitempty"`
	Picture   *Picture         `json:"picture,omitempty"`
	Work      []WorkEntry      `json:"work,omitempty"`
	Location  *NamedRef        `json:"location,omitempty"`
	Education []EducationEntry `json:"education,omitempty"`
}

// Picture wraps the Graph API picture edge.
type Picture struct {
	Data *PictureData `json:"data,omitempty"`
}

// PictureData holds the picture URL.
type PictureData struct {
	URL string `json:"url,omitempty"`
}

// NamedRef is a Graph API object reference of which only the name is used.
type NamedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// WorkEntry is one employment of a profile. An entry without EndDate is a current employment.
type WorkEntry struct {
	Employer  *NamedRef `json:"employer,omitempty"`
	Position  *NamedRef `json:"position,omitempty"`
	StartDate string    `json:"start_date,omitempty"`
	EndDate   string    `json:"end_date,omitempty"`
}

// EducationEntry is one school of a profile.
type EducationEntry struct {
	School *NamedRef `json:"school,omitempty"`
	Type   string    `json:"type,omitempty"`
}

// PictureURL returns the picture URL or the empty string.
func (p Profile) PictureURL() string {
	if p.Picture == nil || p.Picture.Data == nil {
		return ""
	}
	return p.Picture.Data.URL
}

// LocationName returns the location name or the empty string.
func (p Profile) LocationName() string {
	if p.Location == nil {
		return ""
	}
	return p.Location.Name
}
