// Package merge deduplicates contacts by their derived key.
//
// Two records describe the same person when their trimmed, lowercased names are equal. Merging
// never overwrites data: an attribute that is already set keeps its value and only empty
// attributes are filled from the other record.
package merge

import (
	"log/slog"
	"strings"

	"gitlab.com/dirk.krummacker/beetagged/internal/tagging"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// DerivedKey returns the identity of a contact within one import.
func DerivedKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// JoinSource combines two source labels with '+'. Labels of b that are already part of a are not
// repeated.
func JoinSource(a, b string) string {
	if a == "" {
		return b
	}
	labels := strings.Split(a, "+")
	for _, label := range strings.Split(b, "+") {
		if label == "" || containsFold(labels, label) {
			continue
		}
		labels = append(labels, label)
	}
	return strings.Join(labels, "+")
}

// Contact merges src into dst. Every attribute of dst that is empty is taken from src, the source
// labels are joined and the tags are united. Name, ID and timestamps of dst are kept.
func Contact(dst *model.Contact, src model.Contact) {
	fill(&dst.Email, src.Email)
	fill(&dst.Company, src.Company)
	fill(&dst.Position, src.Position)
	fill(&dst.Location, src.Location)
	fill(&dst.Phone, src.Phone)
	fill(&dst.ProfileURL, src.ProfileURL)
	fill(&dst.Picture, src.Picture)
	fill(&dst.ConnectedOn, src.ConnectedOn)
	dst.Source = JoinSource(dst.Source, src.Source)
	dst.Tags = tagging.Union(dst.Tags, src.Tags...)
}

func fill(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Entry is a contact of a batch together with the school of its originating profile.
type Entry struct {
	Contact model.Contact
	School  string
}

// Batch collects the contacts of one import. It is not safe for concurrent use.
type Batch struct {
	logger  *slog.Logger
	index   map[string]*Entry
	entries []*Entry
}

// NewBatch creates an empty batch. A nil logger means slog.Default().
func NewBatch(logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{logger: logger, index: make(map[string]*Entry)}
}

// Merge adds an entry to the batch, merging it into a present entry with the same key. It returns
// false if the entry was discarded because its name yields no key.
func (b *Batch) Merge(e Entry) bool {
	key := DerivedKey(e.Contact.Name)
	if key == "" {
		b.logger.Debug("discarding contact without name", slog.String("source", e.Contact.Source))
		return false
	}
	present, ok := b.index[key]
	if !ok {
		e.Contact.Key = key
		e.Contact.Tags = append([]model.Tag(nil), e.Contact.Tags...)
		entry := &e
		b.index[key] = entry
		b.entries = append(b.entries, entry)
		return true
	}
	Contact(&present.Contact, e.Contact)
	fill(&present.School, e.School)
	return true
}

// Entries returns the entries in the order their keys were first seen.
func (b *Batch) Entries() []*Entry {
	return b.entries
}

// Len returns the number of distinct keys.
func (b *Batch) Len() int {
	return len(b.entries)
}
