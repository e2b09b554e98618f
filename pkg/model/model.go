package model

import "time"

// Tag categories.
const (
	CategoryCompany   = "company"
	CategoryLocation  = "location"
	CategoryEducation = "education"
	CategoryInterest  = "interest"
	CategorySkill     = "skill"
	CategorySource    = "source"
)

// Categories lists every valid tag category.
var Categories = []string{
	CategoryCompany, CategoryLocation, CategoryEducation,
	CategoryInterest, CategorySkill, CategorySource,
}

// Source labels of a contact. Merged contacts carry composite labels such as
// "connections+contacts".
const (
	SourceLinkedIn    = "linkedin"
	SourceConnections = "connections"
	SourceContacts    = "contacts"
	SourceFacebook    = "facebook"
	SourceManual      = "manual"
)

// Contact is the data structure for a person that we know.
// All fields with the exception of Name are optional and are represented by the empty string
// when absent.
type Contact struct {
	ID          string    `json:"id"`
	Key         string    `json:"-"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Company     string    `json:"company"`
	Position    string    `json:"position"`
	Location    string    `json:"location"`
	Phone       string    `json:"phone"`
	ProfileURL  string    `json:"profileUrl"`
	Picture     string    `json:"picture"`
	Source      string    `json:"source"`
	ConnectedOn string    `json:"connectedOn"`
	Tags        []Tag     `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Tag is a categorized label attached to a contact.
type Tag struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	SourceSystem string `json:"sourceSystem,omitempty"`
}

// ImportResult is the response of every import endpoint.
type ImportResult struct {
	Success       bool   `json:"success"`
	Count         int    `json:"count"`
	Message       string `json:"message"`
	TotalContacts *int   `json:"totalContacts,omitempty"`
	Inserted      int    `json:"inserted"`
	Updated       int    `json:"updated"`
	Skipped       int    `json:"skipped"`
}

// SearchResult is the response of the search endpoint. Total counts every match, Contacts holds
// at most one page of them.
type SearchResult struct {
	Contacts []Contact `json:"contacts"`
	Total    int       `json:"total"`
	Query    string    `json:"query"`
}

// ContactPage is the response of the paginated contact listing.
type ContactPage struct {
	Contacts []Contact `json:"contacts"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// Health reports store connectivity.
type Health struct {
	Status   string `json:"status"`
	Store    string `json:"store"`
	Contacts int    `json:"contacts"`
}
