package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/beetagged/internal/apperr"
	"gitlab.com/dirk.krummacker/beetagged/internal/search"
	"gitlab.com/dirk.krummacker/beetagged/internal/store"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var errDown = errors.New("connection refused")

// downStore fails every call.
type downStore struct{}

func (downStore) Name() string                                     { return "down" }
func (downStore) FindAll(context.Context) ([]model.Contact, error) { return nil, errDown }
func (downStore) FindByKey(context.Context, string) (model.Contact, error) {
	return model.Contact{}, errDown
}
func (downStore) FindByID(context.Context, string) (model.Contact, error) {
	return model.Contact{}, errDown
}
func (downStore) List(context.Context, int, int) ([]model.Contact, error) { return nil, errDown }
func (downStore) Count(context.Context) (int, error)                      { return 0, errDown }
func (downStore) Upsert(context.Context, *model.Contact) error            { return errDown }
func (downStore) Delete(context.Context, string) error                    { return errDown }
func (downStore) Ping(context.Context) error                              { return errDown }
func (downStore) Close() error                                            { return nil }

// fakeProfiles serves profiles from memory. Profiles listed in failing cannot be fetched.
type fakeProfiles struct {
	friends    []model.Profile
	friendsErr error
	profiles   map[string]model.Profile
	failing    map[string]bool

	mu      sync.Mutex
	fetched []string
}

func (f *fakeProfiles) Friends(context.Context, string) ([]model.Profile, error) {
	return f.friends, f.friendsErr
}

func (f *fakeProfiles) Profile(_ context.Context, _ string, id string) (model.Profile, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()
	if f.failing[id] {
		return model.Profile{}, errors.New("graph api: 500")
	}
	return f.profiles[id], nil
}

func newPipeline(s store.Store, opts ...Option) *Pipeline {
	opts = append([]Option{
		WithClock(func() time.Time { return now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return New(s, search.NewEngine(search.DefaultVocabulary(), 0), opts...)
}

func csvUpload(label, data string) Upload {
	return Upload{Label: label, Filename: label + ".csv", ContentType: "text/csv", Data: []byte(data)}
}

func findByName(t *testing.T, s store.Store, name string) model.Contact {
	t.Helper()
	c, err := s.FindByKey(context.Background(), strings.ToLower(name))
	require.NoError(t, err)
	return c
}

// TestImportCSV imports a single LinkedIn export row. It expects the normalized contact with its
// company and source tags.
func TestImportCSV(t *testing.T) {
	s := store.NewMemoryStore()
	p := newPipeline(s)

	res, err := p.ImportCSV(context.Background(), []Upload{csvUpload(model.SourceLinkedIn,
		"First Name,Last Name,Company,Position,Email Address\nJane,Doe,Acme Corp,Engineer,jane@acme.com\n")})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 1, res.Inserted)
	require.NotNil(t, res.TotalContacts)
	assert.Equal(t, 1, *res.TotalContacts)
	assert.Equal(t, "Successfully imported 1 contacts from LinkedIn", res.Message)

	c := findByName(t, s, "Jane Doe")
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Jane Doe", c.Name)
	assert.Equal(t, "Acme Corp", c.Company)
	assert.Equal(t, "Engineer", c.Position)
	assert.Equal(t, "jane@acme.com", c.Email)
	assert.Equal(t, model.SourceLinkedIn, c.Source)
	assert.True(t, now.Equal(c.CreatedAt))
	require.Len(t, c.Tags, 2)
	assert.Equal(t, "Acme Corp", c.Tags[0].Name)
	assert.Equal(t, model.CategoryCompany, c.Tags[0].Category)
	assert.Equal(t, "LinkedIn", c.Tags[1].Name)
	assert.Equal(t, model.CategorySource, c.Tags[1].Category)
}

// TestImportCSVDualUpload imports the Connections and the Contacts file of one export. It expects
// one contact per person carrying the attributes of both files.
func TestImportCSVDualUpload(t *testing.T) {
	s := store.NewMemoryStore()
	p := newPipeline(s)

	contacts := csvUpload(model.SourceContacts,
		"Source,FirstName,LastName,Companies,Title,Emails\nLinkedIn,Jane,Doe,Other Inc,CTO,jane@acme.com\n")
	connections := csvUpload(model.SourceConnections,
		"Notes:\n\"Some email addresses are missing.\"\n\n"+
			"First Name,Last Name,URL,Email Address,Company,Position,Connected On\n"+
			"Jane,Doe,https://www.linkedin.com/in/janedoe,,Acme Corp,,01 Mar 2024\n"+
			"Bob,Roe,,,,,02 Mar 2024\n")

	// The Contacts file is submitted first but processed second.
	res, err := p.ImportCSV(context.Background(), []Upload{contacts, connections})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	c := findByName(t, s, "jane doe")
	assert.Equal(t, "connections+contacts", c.Source)
	assert.Equal(t, "01 Mar 2024", c.ConnectedOn)
	assert.Equal(t, "jane@acme.com", c.Email)
	assert.Equal(t, "Acme Corp", c.Company)
	assert.Equal(t, "CTO", c.Position)
	assert.Equal(t, "https://www.linkedin.com/in/janedoe", c.ProfileURL)

	sourceTags := 0
	for _, tag := range c.Tags {
		if tag.Category == model.CategorySource {
			sourceTags++
		}
	}
	assert.Equal(t, 1, sourceTags)
}

// TestImportCSVOrderIndependent imports two files with disjoint attributes of one person in both
// orders. It expects the same attributes.
func TestImportCSVOrderIndependent(t *testing.T) {
	a := csvUpload(model.SourceLinkedIn, "Name,Connected On\nJane Doe,01 Mar 2024\n")
	b := csvUpload(model.SourceLinkedIn, "Name,Email,Company\nJane Doe,jane@acme.com,Acme\n")

	s1, s2 := store.NewMemoryStore(), store.NewMemoryStore()
	_, err := newPipeline(s1).ImportCSV(context.Background(), []Upload{a})
	require.NoError(t, err)
	_, err = newPipeline(s1).ImportCSV(context.Background(), []Upload{b})
	require.NoError(t, err)
	_, err = newPipeline(s2).ImportCSV(context.Background(), []Upload{b})
	require.NoError(t, err)
	_, err = newPipeline(s2).ImportCSV(context.Background(), []Upload{a})
	require.NoError(t, err)

	x, y := findByName(t, s1, "jane doe"), findByName(t, s2, "jane doe")
	assert.Equal(t, x.ConnectedOn, y.ConnectedOn)
	assert.Equal(t, x.Email, y.Email)
	assert.Equal(t, x.Company, y.Company)
	assert.ElementsMatch(t, x.Tags, y.Tags)
}

// TestImportCSVTwice imports the same file twice. It expects the second import to update the
// contact without duplicating it or its tags.
func TestImportCSVTwice(t *testing.T) {
	s := store.NewMemoryStore()
	p := newPipeline(s)
	upload := csvUpload(model.SourceLinkedIn, "Name,Company,Location\nJane Doe,Acme,Austin\n")

	_, err := p.ImportCSV(context.Background(), []Upload{upload})
	require.NoError(t, err)
	first := findByName(t, s, "jane doe")

	res, err := p.ImportCSV(context.Background(), []Upload{upload})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, *res.TotalContacts)

	second := findByName(t, s, "jane doe")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Tags, second.Tags)
	assert.Equal(t, model.SourceLinkedIn, second.Source)
}

// TestImportCSVSkipsRowsWithoutName expects nameless rows to be counted as skipped.
func TestImportCSVSkipsRowsWithoutName(t *testing.T) {
	p := newPipeline(store.NewMemoryStore())
	res, err := p.ImportCSV(context.Background(), []Upload{csvUpload(model.SourceLinkedIn,
		"First Name,Last Name,Company\nJane,Doe,Acme\n,,Globex\n  ,  ,\nJANE,DOE,\n")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 2, res.Skipped)
}

// TestImportCSVRejectsUploads expects type and size checks before anything is parsed or stored.
func TestImportCSVRejectsUploads(t *testing.T) {
	s := store.NewMemoryStore()
	p := newPipeline(s, WithMaxUploadBytes(64))
	ctx := context.Background()

	valid := csvUpload(model.SourceConnections, "Name\nJane\n")
	image := Upload{Label: model.SourceContacts, Filename: "photo.png", ContentType: "image/png", Data: []byte("x")}
	_, err := p.ImportCSV(ctx, []Upload{valid, image})
	assert.ErrorIs(t, err, apperr.ErrUnsupportedFile)

	large := csvUpload(model.SourceLinkedIn, "Name\n"+strings.Repeat("Jane\n", 20))
	_, err = p.ImportCSV(ctx, []Upload{large})
	assert.ErrorIs(t, err, apperr.ErrTooLarge)

	_, err = p.ImportCSV(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	n, _ := s.Count(ctx)
	assert.Equal(t, 0, n)
}

func TestValidateUpload(t *testing.T) {
	assert.NoError(t, ValidateUpload(Upload{Label: "linkedin", Filename: "Connections.CSV"}, 0))
	assert.NoError(t, ValidateUpload(Upload{Label: "linkedin", Filename: "export", ContentType: "text/csv; charset=utf-8"}, 0))
	assert.ErrorIs(t, ValidateUpload(Upload{Label: "linkedin", Filename: "export.xlsx"}, 0), apperr.ErrUnsupportedFile)
	assert.ErrorIs(t, ValidateUpload(Upload{Label: "twitter", Filename: "x.csv"}, 0), apperr.ErrInvalid)
	assert.ErrorIs(t, ValidateUpload(Upload{Label: "linkedin", Filename: "x.csv", Data: make([]byte, 11)}, 10), apperr.ErrTooLarge)
}

// TestStoreUnavailable expects that store failures are reported as ErrUnavailable and never as
// empty results.
func TestStoreUnavailable(t *testing.T) {
	p := newPipeline(downStore{}, WithProfileSource(&fakeProfiles{}))
	ctx := context.Background()

	_, err := p.ImportCSV(ctx, []Upload{csvUpload(model.SourceLinkedIn, "Name\nJane\n")})
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	_, err = p.ImportFacebook(ctx, "token")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	_, err = p.ImportProfiles(ctx, []model.Profile{{Name: "Jane"}}, "")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	res, err := p.Search(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Nil(t, res)

	_, err = p.List(ctx, 1, 10)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	_, err = p.Get(ctx, "id")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.ErrorIs(t, p.Delete(ctx, "id"), apperr.ErrUnavailable)

	h, err := p.Health(ctx)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Equal(t, "degraded", h.Status)
}

// TestStoreTimeout expects that a store call is bounded by the configured timeout.
func TestStoreTimeout(t *testing.T) {
	p := newPipeline(slowStore{store.NewMemoryStore()}, WithStoreTimeout(10*time.Millisecond))
	start := time.Now()
	_, err := p.Search(context.Background(), "jane")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

// slowStore blocks FindAll until the context is done.
type slowStore struct{ *store.MemoryStore }

func (slowStore) FindAll(ctx context.Context) ([]model.Contact, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// TestSearch imports contacts and runs a query with vocabulary terms.
func TestSearch(t *testing.T) {
	p := newPipeline(store.NewMemoryStore())
	_, err := p.ImportCSV(context.Background(), []Upload{csvUpload(model.SourceLinkedIn,
		"Name,Position,Location\nJane Doe,Software Engineer,\"Austin, TX\"\nBob Roe,Accountant,Denver\n")})
	require.NoError(t, err)

	res, err := p.Search(context.Background(), "engineer austin")
	require.NoError(t, err)
	assert.Equal(t, "engineer austin", res.Query)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Contacts, 1)
	assert.Equal(t, "Jane Doe", res.Contacts[0].Name)

	res, err = p.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

// TestList pages through contacts and rejects invalid parameters.
func TestList(t *testing.T) {
	s := store.NewMemoryStore()
	p := newPipeline(s)
	var rows strings.Builder
	rows.WriteString("Name\n")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&rows, "Person %d\n", i)
	}
	_, err := p.ImportCSV(context.Background(), []Upload{csvUpload(model.SourceLinkedIn, rows.String())})
	require.NoError(t, err)

	page, err := p.List(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Limit)
	assert.Len(t, page.Contacts, 2)

	page, err = p.List(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Len(t, page.Contacts, 1)

	for _, params := range [][2]int{{0, 10}, {1, 0}, {1, MaxPageLimit + 1}} {
		_, err = p.List(context.Background(), params[0], params[1])
		assert.ErrorIs(t, err, apperr.ErrInvalid)
	}
}

// TestImportFacebook imports three friends, one of which cannot be fetched. It expects a partial
// success with the failed friend counted as skipped.
func TestImportFacebook(t *testing.T) {
	src := &fakeProfiles{
		friends: []model.Profile{{ID: "1", Name: "Sam"}, {ID: "2", Name: "Kim"}, {ID: "3", Name: "Lee"}},
		profiles: map[string]model.Profile{
			"1": {ID: "1", Name: "Sam Rivera", Work: []model.WorkEntry{{Employer: &model.NamedRef{Name: "Initech"}}},
				Education: []model.EducationEntry{{School: &model.NamedRef{Name: "UT Austin"}}}},
			"3": {ID: "3", Name: "Lee Park", Location: &model.NamedRef{Name: "Seattle"}},
		},
		failing: map[string]bool{"2": true},
	}
	s := store.NewMemoryStore()
	p := newPipeline(s, WithProfileSource(src), WithConcurrency(2))

	res, err := p.ImportFacebook(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.Skipped)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, src.fetched)

	sam := findByName(t, s, "sam rivera")
	assert.Equal(t, model.SourceFacebook, sam.Source)
	assert.Contains(t, sam.Tags, model.Tag{Name: "UT Austin", Category: model.CategoryEducation, SourceSystem: "facebook"})
	assert.Contains(t, sam.Tags, model.Tag{Name: "Facebook", Category: model.CategorySource, SourceSystem: "facebook"})
}

// TestImportFacebookFriendsFailure expects a successful result without contacts when the friends
// list cannot be fetched.
func TestImportFacebookFriendsFailure(t *testing.T) {
	p := newPipeline(store.NewMemoryStore(), WithProfileSource(&fakeProfiles{friendsErr: errors.New("expired token")}))
	res, err := p.ImportFacebook(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Count)
	assert.NotEmpty(t, res.Message)
}

// TestImportProfilesMergesWithCSV imports a LinkedIn contact and then the Facebook profile of the
// same person. It expects one contact with both sources.
func TestImportProfilesMergesWithCSV(t *testing.T) {
	s := store.NewMemoryStore()
	p := newPipeline(s)
	_, err := p.ImportCSV(context.Background(), []Upload{csvUpload(model.SourceLinkedIn, "Name,Company\nSam Rivera,Acme\n")})
	require.NoError(t, err)

	res, err := p.ImportProfiles(context.Background(), []model.Profile{
		{Name: "sam rivera", Work: []model.WorkEntry{{Employer: &model.NamedRef{Name: "Initech"}}}, Location: &model.NamedRef{Name: "Austin"}},
		{ID: "no-name"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)

	c := findByName(t, s, "sam rivera")
	assert.Equal(t, "Sam Rivera", c.Name)
	assert.Equal(t, "Acme", c.Company)
	assert.Equal(t, "Austin", c.Location)
	assert.Equal(t, "linkedin+facebook", c.Source)
}

// TestCreate enters a contact manually and then again with more data.
func TestCreate(t *testing.T) {
	s := store.NewMemoryStore()
	p := newPipeline(s)

	c, created, err := p.Create(context.Background(), model.Contact{Name: " Ann Lee ", Email: "Ann@Example.com"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Ann Lee", c.Name)
	assert.Equal(t, "ann@example.com", c.Email)
	assert.Equal(t, model.SourceManual, c.Source)

	again, created, err := p.Create(context.Background(), model.Contact{Name: "ann lee", Email: "other@example.com", Company: "Acme"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, "ann@example.com", again.Email)
	assert.Equal(t, "Acme", again.Company)

	_, _, err = p.Create(context.Background(), model.Contact{Name: "   "})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

// TestTags adds and removes tags of a contact.
func TestTags(t *testing.T) {
	p := newPipeline(store.NewMemoryStore())
	ctx := context.Background()
	c, _, err := p.Create(ctx, model.Contact{Name: "Ann"})
	require.NoError(t, err)

	c, err = p.AddTag(ctx, c.ID, model.Tag{Name: "Chess", Category: model.CategoryInterest})
	require.NoError(t, err)
	c, err = p.AddTag(ctx, c.ID, model.Tag{Name: "chess", Category: model.CategoryInterest})
	require.NoError(t, err)
	assert.Contains(t, c.Tags, model.Tag{Name: "Chess", Category: model.CategoryInterest, SourceSystem: "manual"})
	assert.Len(t, c.Tags, 2)

	c, err = p.RemoveTag(ctx, c.ID, "CHESS", model.CategoryInterest)
	require.NoError(t, err)
	assert.Len(t, c.Tags, 1)

	_, err = p.RemoveTag(ctx, c.ID, "Chess", model.CategoryInterest)
	assert.ErrorIs(t, err, apperr.ErrTagNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = p.AddTag(ctx, "missing", model.Tag{Name: "Go", Category: model.CategorySkill})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// TestDeleteAndHealth deletes a contact and checks the reported contact count.
func TestDeleteAndHealth(t *testing.T) {
	p := newPipeline(store.NewMemoryStore())
	ctx := context.Background()
	c, _, err := p.Create(ctx, model.Contact{Name: "Ann"})
	require.NoError(t, err)

	h, err := p.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Health{Status: "ok", Store: "memory", Contacts: 1}, h)

	require.NoError(t, p.Delete(ctx, c.ID))
	assert.ErrorIs(t, p.Delete(ctx, c.ID), apperr.ErrNotFound)
	_, err = p.Get(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
