// Package tagging derives categorized tags from contact attributes.
package tagging

import (
	"strings"

	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// Source systems as they appear in the sourceSystem attribute of a tag.
const (
	SystemLinkedIn = "linkedin"
	SystemFacebook = "facebook"
	SystemManual   = "manual"
)

// systems maps a source label to its source system.
var systems = map[string]string{
	model.SourceLinkedIn:    SystemLinkedIn,
	model.SourceConnections: SystemLinkedIn,
	model.SourceContacts:    SystemLinkedIn,
	model.SourceFacebook:    SystemFacebook,
	model.SourceManual:      SystemManual,
}

// displayNames are the tag names of the source systems.
var displayNames = map[string]string{
	SystemLinkedIn: "LinkedIn",
	SystemFacebook: "Facebook",
	SystemManual:   "Manual",
}

// Systems returns the distinct source systems of a possibly composite source label, in order of
// first appearance. Unknown labels are ignored.
func Systems(source string) []string {
	var out []string
	for _, label := range strings.Split(source, "+") {
		system, ok := systems[strings.ToLower(strings.TrimSpace(label))]
		if !ok || contains(out, system) {
			continue
		}
		out = append(out, system)
	}
	return out
}

// primarySystem is recorded as sourceSystem on derived tags.
func primarySystem(source string) string {
	if s := Systems(source); len(s) > 0 {
		return s[0]
	}
	return ""
}

// Derive returns the tags implied by the attributes of a contact: its company, its location, the
// given school and one tag per source system. Empty attributes produce no tag.
func Derive(c model.Contact, school string) []model.Tag {
	system := primarySystem(c.Source)
	var tags []model.Tag
	add := func(name, category string) {
		if name = strings.TrimSpace(name); name != "" {
			tags = Union(tags, model.Tag{Name: name, Category: category, SourceSystem: system})
		}
	}
	add(c.Company, model.CategoryCompany)
	add(c.Location, model.CategoryLocation)
	add(school, model.CategoryEducation)
	for _, s := range Systems(c.Source) {
		tags = Union(tags, model.Tag{Name: displayNames[s], Category: model.CategorySource, SourceSystem: s})
	}
	return tags
}

// Same reports whether two tags have the same category and, ignoring case, the same name.
func Same(a, b model.Tag) bool {
	return a.Category == b.Category && strings.EqualFold(a.Name, b.Name)
}

// Union appends every tag of add that is not yet in tags.
func Union(tags []model.Tag, add ...model.Tag) []model.Tag {
	for _, t := range add {
		if indexOf(tags, t) < 0 {
			tags = append(tags, t)
		}
	}
	return tags
}

// Remove returns tags without the tag of the given name and category, and whether it was present.
func Remove(tags []model.Tag, name, category string) ([]model.Tag, bool) {
	i := indexOf(tags, model.Tag{Name: name, Category: category})
	if i < 0 {
		return tags, false
	}
	out := make([]model.Tag, 0, len(tags)-1)
	out = append(out, tags[:i]...)
	return append(out, tags[i+1:]...), true
}

func indexOf(tags []model.Tag, t model.Tag) int {
	for i := range tags {
		if Same(tags[i], t) {
			return i
		}
	}
	return -1
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
