package service

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/beetagged/internal/apperr"
	"gitlab.com/dirk.krummacker/beetagged/internal/config"
	"gitlab.com/dirk.krummacker/beetagged/internal/model"
	"gitlab.com/dirk.krummacker/beetagged/internal/pipeline"
	pkgmodel "gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// defaultPageLimit is the page size of the contact listing if the 'limit' parameter is omitted.
const defaultPageLimit = 50

// multipartOverhead is added to the upload limit to leave room for the multipart envelope.
const multipartOverhead = 1 << 20

// uploadFields maps the multipart form fields to the source label of their contacts.
var uploadFields = []struct {
	field string
	label string
}{
	{"file", pkgmodel.SourceLinkedIn},
	{"connections", pkgmodel.SourceConnections},
	{"contacts", pkgmodel.SourceContacts},
}

// handler serves the REST API on top of the import and search pipeline.
type handler struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func SetupHttpRouter(p *pipeline.Pipeline, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{pipeline: p, logger: logger}

	router := gin.New()
	if cfg.App.HTTP.RequestLogging && !strings.EqualFold(os.Getenv("GIN_LOGGING"), "off") {
		router.Use(requestLogger(logger))
	} else {
		logger.Info("HTTP request logging is turned off")
	}
	router.Use(gin.Recovery())

	imports := router.Group("/api/import", rateLimit(cfg.Import.RateLimit))
	imports.POST("/linkedin", h.importLinkedIn)
	imports.POST("/facebook", h.importFacebook)
	imports.POST("/facebook/profiles", h.importProfiles)

	api := router.Group("/api")
	api.GET("/search", h.search)
	api.GET("/contacts", h.findContacts)
	api.POST("/contacts", h.createContact)
	api.GET("/contacts/:id", h.findContactByID)
	api.DELETE("/contacts/:id", h.deleteContactByID)
	api.POST("/contacts/:id/tags", h.addTag)
	api.DELETE("/contacts/:id/tags", h.removeTag)

	router.GET("/health", h.health)
	return router
}

// errorStatus maps an error returned by the pipeline to an HTTP status code and a message that
// can be shown to the caller.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, apperr.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType, "only CSV files are allowed"
	case errors.Is(err, apperr.ErrUnavailable):
		return http.StatusServiceUnavailable, "contact store unavailable"
	case errors.Is(err, apperr.ErrTagNotFound):
		return http.StatusNotFound, "tag not found"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "contact not found"
	case errors.Is(err, apperr.ErrInvalid):
		return http.StatusBadRequest, "invalid request"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// abortWithError responds with the status code and message for the error.
func (h *handler) abortWithError(c *gin.Context, err error) {
	status, message := errorStatus(err)
	h.log(c, status, err)
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// abortImport responds like abortWithError, but with the body of a failed import.
func (h *handler) abortImport(c *gin.Context, err error) {
	status, message := errorStatus(err)
	h.log(c, status, err)
	c.AbortWithStatusJSON(status, pkgmodel.ImportResult{Success: false, Message: message})
}

func (h *handler) log(c *gin.Context, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(c.Request.Context(), level, "request failed",
		slog.String("path", c.FullPath()),
		slog.Int("status", status),
		slog.Any("error", err))
}

// importLinkedIn imports one or two LinkedIn CSV exports. A single export is sent in the form
// field 'file'. The two files of a full export are sent in the fields 'connections' and
// 'contacts', where 'contacts' is optional.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/api/import/linkedin --form "file=@Connections.csv"
//	> curl http://localhost:8080/api/import/linkedin --form "connections=@Connections.csv" --form "contacts=@Contacts.csv"
func (h *handler) importLinkedIn(c *gin.Context) {
	maxBytes := h.pipeline.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*maxBytes+multipartOverhead)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.abortImport(c, apperr.ErrTooLarge)
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ImportResult{Message: "no file uploaded"})
		return
	}

	var uploads []pipeline.Upload
	for _, f := range uploadFields {
		headers := form.File[f.field]
		if len(headers) == 0 {
			continue
		}
		upload, err := readUpload(headers[0], f.label, maxBytes)
		if err != nil {
			h.abortImport(c, err)
			return
		}
		uploads = append(uploads, upload)
	}
	if len(uploads) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ImportResult{Message: "no file uploaded"})
		return
	}

	result, err := h.pipeline.ImportCSV(c.Request.Context(), uploads)
	if err != nil {
		h.abortImport(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, result)
}

// readUpload reads an uploaded file. Files that are larger than maxBytes are rejected without
// reading them.
func readUpload(fh *multipart.FileHeader, label string, maxBytes int64) (pipeline.Upload, error) {
	upload := pipeline.Upload{
		Label:       label,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}
	if fh.Size > maxBytes {
		return upload, apperr.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return upload, err
	}
	defer f.Close()
	upload.Data, err = io.ReadAll(io.LimitReader(f, maxBytes+1))
	return upload, err
}

// importFacebook imports the friends of the user who granted the access token.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/import/facebook --request "POST" --header "Content-Type: application/json" --data '{"accessToken": "EAAB..."}'
func (h *handler) importFacebook(c *gin.Context) {
	var request model.FacebookImportRequest
	if err := c.BindJSON(&request); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ImportResult{Message: "invalid JSON"})
		return
	}
	if err := request.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ImportResult{Message: "access token required"})
		return
	}
	result, err := h.pipeline.ImportFacebook(c.Request.Context(), request.AccessToken)
	if err != nil {
		h.abortImport(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, result)
}

// importProfiles imports profile documents that the caller already fetched from Facebook.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/import/facebook/profiles --request "POST" --header "Content-Type: application/json" --data '{"profiles": [{"id": "1", "name": "Jane Doe"}]}'
func (h *handler) importProfiles(c *gin.Context) {
	var request model.ProfilesImportRequest
	if err := c.BindJSON(&request); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ImportResult{Message: "invalid JSON"})
		return
	}
	if err := request.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ImportResult{Message: "no profiles submitted"})
		return
	}
	result, err := h.pipeline.ImportProfiles(c.Request.Context(), request.Profiles, "")
	if err != nil {
		h.abortImport(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, result)
}

// search responds with the contacts matching the free-text query in the URL parameter 'q'. The
// query is matched against name, company, position, location and email. Known roles, companies
// and cities in the query are matched against the corresponding attribute. An empty query returns
// the newest contacts.
//
// Example REST API calls:
//
//	> curl "http://localhost:8080/api/search?q=engineer+austin"
//	> curl "http://localhost:8080/api/search?q=google"
func (h *handler) search(c *gin.Context) {
	result, err := h.pipeline.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, result)
}

// findContacts responds with one page of contacts, newest first.
//
// The URL parameter 'page' selects the page, starting at 1. The URL parameter 'limit' specifies
// the number of contacts per page.
//
// REST API calls:
//
//	> curl "http://localhost:8080/api/contacts"
//	> curl "http://localhost:8080/api/contacts?page=3&limit=20"
func (h *handler) findContacts(c *gin.Context) {
	page, limit, success := parsePageAndLimit(c)
	if !success {
		return
	}
	result, err := h.pipeline.List(c.Request.Context(), page, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, result)
}

// parsePageAndLimit inspects the URL parameters and determines page number and page size.
func parsePageAndLimit(c *gin.Context) (page int, limit int, success bool) {
	page, limit = 1, defaultPageLimit
	var errConv error
	if s := c.Query("page"); s != "" {
		page, errConv = strconv.Atoi(s)
		if errConv != nil || page < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid page parameter"})
			return 0, 0, false
		}
	}
	if s := c.Query("limit"); s != "" {
		limit, errConv = strconv.Atoi(s)
		if errConv != nil || limit < 1 || limit > pipeline.MaxPageLimit {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid limit parameter"})
			return 0, 0, false
		}
	}
	return page, limit, true
}

// createContact enters the contact specified in the request's JSON. If a contact with the same
// name exists, the submitted values fill its empty attributes and the status code is 200 instead
// of 201.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts --request "POST" --include --header "Content-Type: application/json" --data '{"name": "Erika Mustermann", "company": "Acme", "location": "Berlin"}'
func (h *handler) createContact(c *gin.Context) {
	var input model.ContactInput
	if err := c.BindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	contact, created, err := h.pipeline.Create(c.Request.Context(), input.Contact())
	if errors.Is(err, apperr.ErrInvalid) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "name is required"})
		return
	}
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if created {
		c.IndentedJSON(http.StatusCreated, contact)
	} else {
		c.IndentedJSON(http.StatusOK, contact)
	}
}

// findContactByID responds with the contact whose ID matches the id parameter of the request URL.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts/0b5b7a4e-8d8f-4a43-a0a4-1f0a5e1c2d3b
func (h *handler) findContactByID(c *gin.Context) {
	contact, err := h.pipeline.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// deleteContactByID deletes the contact whose ID matches the id parameter of the request URL.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts/0b5b7a4e-8d8f-4a43-a0a4-1f0a5e1c2d3b --request "DELETE"
func (h *handler) deleteContactByID(c *gin.Context) {
	if err := h.pipeline.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contact deleted"})
}

// addTag adds the tag specified in the request's JSON to a contact and responds with the updated
// contact. Adding a tag twice changes nothing.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts/0b5b7a4e-8d8f-4a43-a0a4-1f0a5e1c2d3b/tags --request "POST" --header "Content-Type: application/json" --data '{"name": "Chess", "category": "interest"}'
func (h *handler) addTag(c *gin.Context) {
	var input model.TagInput
	if err := c.BindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	if err := input.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid tag: " + err.Error()})
		return
	}
	tag := pkgmodel.Tag{Name: input.Name, Category: input.Category}
	contact, err := h.pipeline.AddTag(c.Request.Context(), c.Param("id"), tag)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// removeTag removes the tag given by the URL parameters 'name' and 'category' from a contact and
// responds with the updated contact.
//
// Example REST API call:
//
//	> curl "http://localhost:8080/api/contacts/0b5b7a4e-8d8f-4a43-a0a4-1f0a5e1c2d3b/tags?name=Chess&category=interest" --request "DELETE"
func (h *handler) removeTag(c *gin.Context) {
	name, category := c.Query("name"), c.Query("category")
	if name == "" || category == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "name and category parameters are required"})
		return
	}
	contact, err := h.pipeline.RemoveTag(c.Request.Context(), c.Param("id"), name, category)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// health reports whether the contact store is reachable.
//
//	> curl http://localhost:8080/health
func (h *handler) health(c *gin.Context) {
	status, err := h.pipeline.Health(c.Request.Context())
	if err != nil {
		h.logger.Warn("health check failed", slog.Any("error", err))
		c.IndentedJSON(http.StatusServiceUnavailable, status)
		return
	}
	c.IndentedJSON(http.StatusOK, status)
}
