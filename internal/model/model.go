package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// ContactInput is the request body for entering a contact manually.
// All fields are optional, but either Name or FirstName/LastName must yield a non-empty name.
type ContactInput struct {
	Name       *string `json:"name,omitempty"`
	FirstName  *string `json:"firstname,omitempty"`
	LastName   *string `json:"lastname,omitempty"`
	Email      *string `json:"email,omitempty"`
	Company    *string `json:"company,omitempty"`
	Position   *string `json:"position,omitempty"`
	Location   *string `json:"location,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	ProfileURL *string `json:"profileUrl,omitempty"`
}

// TagInput is the request body for adding a tag to a contact.
type TagInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Validate checks the tag name and category.
func (t TagInput) Validate() error {
	categories := make([]interface{}, len(model.Categories))
	for i, c := range model.Categories {
		categories[i] = c
	}
	return validation.ValidateStruct(&t,
		validation.Field(&t.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&t.Category, validation.Required, validation.In(categories...)),
	)
}

// FacebookImportRequest is the request body for importing Facebook friends.
type FacebookImportRequest struct {
	AccessToken string `json:"accessToken"`
}

// Validate checks that an access token is present.
func (r FacebookImportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AccessToken, validation.Required),
	)
}

// ProfilesImportRequest is the request body for importing profile documents that were already
// obtained from the identity provider.
type ProfilesImportRequest struct {
	Profiles []model.Profile `json:"profiles"`
}

// Validate checks that at least one profile was submitted.
func (r ProfilesImportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Profiles, validation.Required),
	)
}

// value dereferences an optional string.
func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Contact converts the input into a contact. The name is not validated here.
func (in ContactInput) Contact() model.Contact {
	name := value(in.Name)
	if name == "" {
		name = value(in.FirstName) + " " + value(in.LastName)
	}
	return model.Contact{
		Name:       name,
		Email:      value(in.Email),
		Company:    value(in.Company),
		Position:   value(in.Position),
		Location:   value(in.Location),
		Phone:      value(in.Phone),
		ProfileURL: value(in.ProfileURL),
		Source:     model.SourceManual,
	}
}
