// Package search matches free-text queries against contacts.
//
// A contact matches when the whole query occurs in its name, company, position, location or
// email. Queries that mention a known company, role or city additionally match every contact
// whose company, position or location contains that term, so "engineer austin" finds engineers
// and people in Austin even though no single attribute contains the full query.
package search

import (
	"sort"
	"strings"
	"sync/atomic"

	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// DefaultResultCap is the page size of a search.
const DefaultResultCap = 50

// Result is one page of matches. Total counts every match.
type Result struct {
	Contacts []model.Contact
	Total    int
}

// Engine runs searches. Its vocabulary can be replaced while searches are running.
type Engine struct {
	vocab     atomic.Pointer[Vocabulary]
	resultCap int
}

// NewEngine creates an engine. A cap below one means DefaultResultCap.
func NewEngine(vocab Vocabulary, resultCap int) *Engine {
	if resultCap < 1 {
		resultCap = DefaultResultCap
	}
	e := &Engine{resultCap: resultCap}
	e.SetVocabulary(vocab)
	return e
}

// SetVocabulary replaces the vocabulary of the engine.
func (e *Engine) SetVocabulary(v Vocabulary) {
	v = v.normalized()
	e.vocab.Store(&v)
}

// Vocabulary returns the vocabulary currently in use.
func (e *Engine) Vocabulary() Vocabulary {
	return *e.vocab.Load()
}

// Search returns the contacts matching the query, newest first. A blank query matches every
// contact.
func (e *Engine) Search(query string, contacts []model.Contact) Result {
	q := strings.ToLower(strings.TrimSpace(query))
	var matches []model.Contact
	if q == "" {
		matches = append(matches, contacts...)
	} else {
		m := e.matcher(q)
		for _, c := range contacts {
			if m.match(c) {
				matches = append(matches, c)
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	total := len(matches)
	if total > e.resultCap {
		matches = matches[:e.resultCap]
	}
	if matches == nil {
		matches = []model.Contact{}
	}
	return Result{Contacts: matches, Total: total}
}

// matcher holds a lowercased query and the vocabulary terms it mentions.
type matcher struct {
	query     string
	companies []string
	roles     []string
	cities    []string
}

func (e *Engine) matcher(q string) matcher {
	v := e.vocab.Load()
	terms := strings.Fields(q)
	return matcher{
		query:     q,
		companies: mentioned(terms, v.Companies),
		roles:     mentioned(terms, v.Roles),
		cities:    mentioned(terms, v.Cities),
	}
}

func (m matcher) match(c model.Contact) bool {
	for _, s := range []string{c.Name, c.Company, c.Position, c.Location, c.Email} {
		if containsFold(s, m.query) {
			return true
		}
	}
	return anyContained(c.Company, m.companies) ||
		anyContained(c.Position, m.roles) ||
		anyContained(c.Location, m.cities)
}

// mentioned returns the vocabulary entries that occur in the query as whole words. Entries of
// several words must occur as consecutive terms.
func mentioned(terms, vocabulary []string) []string {
	var out []string
	for _, entry := range vocabulary {
		if phraseIn(terms, strings.Fields(entry)) {
			out = append(out, entry)
		}
	}
	return out
}

func phraseIn(terms, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(terms); i++ {
		found := true
		for j := range phrase {
			if terms[i+j] != phrase[j] {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

func anyContained(s string, terms []string) bool {
	for _, t := range terms {
		if containsFold(s, t) {
			return true
		}
	}
	return false
}

// containsFold reports whether s contains the lowercased substring sub, ignoring case.
func containsFold(s, sub string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), sub)
}
