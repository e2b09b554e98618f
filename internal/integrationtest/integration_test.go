package integrationtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/beetagged/internal/config"
	"gitlab.com/dirk.krummacker/beetagged/internal/pipeline"
	"gitlab.com/dirk.krummacker/beetagged/internal/search"
	"gitlab.com/dirk.krummacker/beetagged/internal/service"
	"gitlab.com/dirk.krummacker/beetagged/internal/store"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

const connections = "First Name,Last Name,URL,Email Address,Company,Position,Connected On\n" +
	"Jane,Doe,https://www.linkedin.com/in/janedoe,jane@acme.com,Acme Corp,Software Engineer,01 Mar 2023\n" +
	"Max,Mustermann,,,Globex,\"Director, Sales\",15 Jan 2022\n" +
	",,,,Nobody Inc,Ghost,\n"

const contacts = "\ufeffFirst Name,Last Name,Phone,Location\n" +
	"Jane,Doe,+1 512 555 0100,Austin\n" +
	"Aiko,Tanaka,,Seattle\n"

// openStore opens a SQLite store in a file below the test's temporary directory.
func openStore(t *testing.T, path string) store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{
		Driver:  store.DriverSQLite,
		DSN:     path,
		Migrate: true,
	})
	require.NoError(t, err)
	return s
}

// setupRouter wires the complete service on top of the store.
func setupRouter(s store.Store) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.NewDefaultConfig()
	cfg.Import.RateLimit = config.RateLimitConfig{}
	p := pipeline.New(s, search.NewEngine(search.DefaultVocabulary(), cfg.Search.ResultCap),
		pipeline.WithLogger(logger))
	return service.SetupHttpRouter(p, cfg, logger)
}

func uploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for field, content := range files {
		part, err := writer.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	request, _ := http.NewRequest("POST", "/api/import/linkedin", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

// TestImportAndSearch imports a full LinkedIn export into SQLite, searches it, tags a contact and
// deletes it again.
func TestImportAndSearch(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "contacts.db"))
	defer s.Close()
	router := setupRouter(s)

	// test the endpoint for importing a LinkedIn export
	importRecorder := httptest.NewRecorder()
	router.ServeHTTP(importRecorder, uploadRequest(t, map[string]string{
		"connections": connections,
		"contacts":    contacts,
	}))
	require.Equal(t, http.StatusOK, importRecorder.Code, importRecorder.Body.String())
	var importBody model.ImportResult
	require.NoError(t, json.Unmarshal(importRecorder.Body.Bytes(), &importBody))
	assert.True(t, importBody.Success)
	assert.Equal(t, 3, importBody.Count)
	assert.Equal(t, 1, importBody.Skipped)
	assert.Equal(t, "Successfully imported 3 contacts from LinkedIn", importBody.Message)

	// test the endpoint for searching with a role and a city
	searchRecorder := httptest.NewRecorder()
	searchRequest, _ := http.NewRequest("GET", "/api/search?q=engineer+austin", nil)
	router.ServeHTTP(searchRecorder, searchRequest)
	assert.Equal(t, http.StatusOK, searchRecorder.Code)
	var searchBody model.SearchResult
	require.NoError(t, json.Unmarshal(searchRecorder.Body.Bytes(), &searchBody))
	require.Len(t, searchBody.Contacts, 1)
	jane := searchBody.Contacts[0]
	assert.Equal(t, "Jane Doe", jane.Name)
	assert.Equal(t, "Acme Corp", jane.Company)
	assert.Equal(t, "Software Engineer", jane.Position)
	assert.Equal(t, "Austin", jane.Location)
	assert.Equal(t, "+1 512 555 0100", jane.Phone)
	assert.Equal(t, "https://www.linkedin.com/in/janedoe", jane.ProfileURL)
	assert.Equal(t, "connections+contacts", jane.Source)
	assert.Contains(t, jane.Tags, model.Tag{Name: "Acme Corp", Category: model.CategoryCompany, SourceSystem: "linkedin"})
	assert.Contains(t, jane.Tags, model.Tag{Name: "Austin", Category: model.CategoryLocation, SourceSystem: "linkedin"})

	// test the endpoint for adding a tag
	tagRecorder := httptest.NewRecorder()
	tagRequest, _ := http.NewRequest("POST", "/api/contacts/"+jane.ID+"/tags",
		strings.NewReader(`{"name": "Go", "category": "skill"}`))
	tagRequest.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(tagRecorder, tagRequest)
	assert.Equal(t, http.StatusOK, tagRecorder.Code)

	// test if a subsequent lookup of the contact returns the new tag
	getRecorder := httptest.NewRecorder()
	getRequest, _ := http.NewRequest("GET", "/api/contacts/"+jane.ID, nil)
	router.ServeHTTP(getRecorder, getRequest)
	assert.Equal(t, http.StatusOK, getRecorder.Code)
	var getBody model.Contact
	require.NoError(t, json.Unmarshal(getRecorder.Body.Bytes(), &getBody))
	assert.Contains(t, getBody.Tags, model.Tag{Name: "Go", Category: model.CategorySkill, SourceSystem: "manual"})

	// test the endpoint for deleting a contact
	deleteRecorder := httptest.NewRecorder()
	deleteRequest, _ := http.NewRequest("DELETE", "/api/contacts/"+jane.ID, nil)
	router.ServeHTTP(deleteRecorder, deleteRequest)
	assert.Equal(t, http.StatusOK, deleteRecorder.Code)

	// test if a subsequent lookup of the contact fails
	getRecorder = httptest.NewRecorder()
	getRequest, _ = http.NewRequest("GET", "/api/contacts/"+jane.ID, nil)
	router.ServeHTTP(getRecorder, getRequest)
	assert.Equal(t, http.StatusNotFound, getRecorder.Code)
}

// TestReimportAfterRestart imports the same export twice with a restart in between. It expects
// the contacts to survive the restart and the second import to update them instead of creating
// duplicates.
func TestReimportAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.db")

	s := openStore(t, path)
	recorder := httptest.NewRecorder()
	setupRouter(s).ServeHTTP(recorder, uploadRequest(t, map[string]string{"file": connections}))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	require.NoError(t, s.Close())

	s = openStore(t, path)
	defer s.Close()
	router := setupRouter(s)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, uploadRequest(t, map[string]string{"file": connections}))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var importBody model.ImportResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &importBody))
	assert.Equal(t, 0, importBody.Inserted)
	assert.Equal(t, 2, importBody.Updated)
	require.NotNil(t, importBody.TotalContacts)
	assert.Equal(t, 2, *importBody.TotalContacts)

	recorder = httptest.NewRecorder()
	request, _ := http.NewRequest("GET", "/api/contacts", nil)
	router.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
	var page model.ContactPage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	for _, c := range page.Contacts {
		tags := map[model.Tag]int{}
		for _, tag := range c.Tags {
			tags[tag]++
			assert.Equal(t, 1, tags[tag], "duplicate tag %v on %s", tag, c.Name)
		}
	}

	recorder = httptest.NewRecorder()
	request, _ = http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status": "ok", "store": "sqlite", "contacts": 2}`, recorder.Body.String())
}
