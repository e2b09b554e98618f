package pipeline

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/dirk.krummacker/beetagged/internal/apperr"
	"gitlab.com/dirk.krummacker/beetagged/internal/merge"
	"gitlab.com/dirk.krummacker/beetagged/internal/normalize"
	"gitlab.com/dirk.krummacker/beetagged/internal/tagging"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// Search runs a free-text query against all stored contacts.
func (p *Pipeline) Search(ctx context.Context, query string) (*model.SearchResult, error) {
	sctx, cancel := p.withTimeout(ctx)
	defer cancel()
	contacts, err := p.store.FindAll(sctx)
	if err != nil {
		return nil, storeError("search", err)
	}
	res := p.engine.Search(query, contacts)
	return &model.SearchResult{Contacts: res.Contacts, Total: res.Total, Query: query}, nil
}

// List returns one page of contacts, newest first. Pages start at 1.
func (p *Pipeline) List(ctx context.Context, page, limit int) (*model.ContactPage, error) {
	if page < 1 || limit < 1 || limit > MaxPageLimit {
		return nil, fmt.Errorf("%w: page %d, limit %d", apperr.ErrInvalid, page, limit)
	}
	lctx, cancel := p.withTimeout(ctx)
	defer cancel()
	contacts, err := p.store.List(lctx, (page-1)*limit, limit)
	if err != nil {
		return nil, storeError("list contacts", err)
	}
	total, err := p.count(ctx)
	if err != nil {
		return nil, err
	}
	return &model.ContactPage{Contacts: contacts, Total: total, Page: page, Limit: limit}, nil
}

// Get returns the contact with the given ID.
func (p *Pipeline) Get(ctx context.Context, id string) (model.Contact, error) {
	return p.findByID(ctx, id)
}

// Create enters a contact manually. If a contact with the same name exists, the new data fills its
// empty attributes. It reports whether a new contact was created.
func (p *Pipeline) Create(ctx context.Context, c model.Contact) (model.Contact, bool, error) {
	candidate := model.Contact{
		Name:       normalize.FullName(c.Name, "", ""),
		Email:      strings.ToLower(strings.TrimSpace(c.Email)),
		Company:    strings.TrimSpace(c.Company),
		Position:   strings.TrimSpace(c.Position),
		Location:   strings.TrimSpace(c.Location),
		Phone:      strings.TrimSpace(c.Phone),
		ProfileURL: strings.TrimSpace(c.ProfileURL),
		Source:     model.SourceManual,
	}
	batch := merge.NewBatch(p.logger)
	if !batch.Merge(merge.Entry{Contact: candidate}) {
		return model.Contact{}, false, fmt.Errorf("%w: name is required", apperr.ErrInvalid)
	}
	if err := p.ping(ctx); err != nil {
		return model.Contact{}, false, err
	}
	saved, stats, err := p.commit(ctx, batch)
	if err != nil {
		return model.Contact{}, false, err
	}
	return saved[0], stats.inserted == 1, nil
}

// AddTag adds a tag to a contact. Adding a tag the contact already has changes nothing.
func (p *Pipeline) AddTag(ctx context.Context, id string, tag model.Tag) (model.Contact, error) {
	tag.Name = strings.TrimSpace(tag.Name)
	if tag.Name == "" {
		return model.Contact{}, fmt.Errorf("%w: tag name is required", apperr.ErrInvalid)
	}
	if tag.SourceSystem == "" {
		tag.SourceSystem = tagging.SystemManual
	}
	c, err := p.findByID(ctx, id)
	if err != nil {
		return c, err
	}
	before := len(c.Tags)
	c.Tags = tagging.Union(c.Tags, tag)
	if len(c.Tags) == before {
		return c, nil
	}
	c.UpdatedAt = p.now().UTC()
	if err := p.upsert(ctx, &c); err != nil {
		return model.Contact{}, err
	}
	return c, nil
}

// RemoveTag removes the tag with the given name and category from a contact. It returns
// apperr.ErrTagNotFound if the contact does not have that tag.
func (p *Pipeline) RemoveTag(ctx context.Context, id, name, category string) (model.Contact, error) {
	c, err := p.findByID(ctx, id)
	if err != nil {
		return c, err
	}
	tags, ok := tagging.Remove(c.Tags, name, category)
	if !ok {
		return model.Contact{}, fmt.Errorf("%s/%s: %w", category, name, apperr.ErrTagNotFound)
	}
	c.Tags = tags
	c.UpdatedAt = p.now().UTC()
	if err := p.upsert(ctx, &c); err != nil {
		return model.Contact{}, err
	}
	return c, nil
}

// Delete removes a contact.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	dctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if err := p.store.Delete(dctx, id); err != nil {
		return storeError("delete contact", err)
	}
	return nil
}

// Health reports whether the store is reachable and how many contacts it holds. The error is
// non-nil if the store is unavailable.
func (p *Pipeline) Health(ctx context.Context) (model.Health, error) {
	h := model.Health{Status: "ok", Store: p.store.Name()}
	if err := p.ping(ctx); err != nil {
		h.Status = "degraded"
		return h, err
	}
	n, err := p.count(ctx)
	if err != nil {
		h.Status = "degraded"
		return h, err
	}
	h.Contacts = n
	return h, nil
}
