package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/birthday"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/logging"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/model"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// defaultLimit is the number of contacts returned by list and search calls without 'limit'.
const defaultLimit = 100

// defaultBirthdayDays is the size of the birthday window if the 'days' parameter is omitted.
const defaultBirthdayDays = 7

// maxBirthdayDays is the largest accepted birthday window.
const maxBirthdayDays = 365

// allowedAscending are the allowed values for the 'ascending' URL parameter.
var allowedAscending = []string{"true", "false"}

// ContactStore is the persistence used by the service. *store.Store implements it.
type ContactStore interface {
	Create(ctx context.Context, input model.ContactCreate) (model.Contact, error)
	Get(ctx context.Context, id int64) (model.Contact, error)
	List(ctx context.Context, f store.Filter) ([]model.Contact, error)
	Search(ctx context.Context, q string, limit uint64, offset uint64) ([]model.Contact, error)
	All(ctx context.Context) ([]model.Contact, error)
	Update(ctx context.Context, id int64, patch model.ContactPatch) (model.Contact, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Options control the optional middleware of the router.
type Options struct {
	// HTTPLogging enables one log entry per request.
	HTTPLogging bool

	// CORSOrigins are the origins allowed to call the API from a browser. Empty disables CORS.
	CORSOrigins []string

	// ServiceName enables an OpenTelemetry span per request when set. Spans go to the global
	// tracer provider, see tracing.Init.
	ServiceName string
}

// Service implements the REST API of the contacts directory.
type Service struct {
	contacts ContactStore
	logger   *zap.Logger
	today    func() civil.Date
}

// New returns a service on top of the given store. The today function supplies the current date
// for birthday queries.
func New(contacts ContactStore, logger *zap.Logger, today func() civil.Date) *Service {
	return &Service{contacts: contacts, logger: logger, today: today}
}

// Today returns the current date in the local time zone of the server.
func Today() civil.Date {
	return civil.DateOf(time.Now())
}

// Router initializes the REST API router and registers all endpoints.
func (s *Service) Router(opts Options) *gin.Engine {
	validate()
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	if opts.HTTPLogging {
		router.Use(logging.Middleware(s.logger))
	} else {
		s.logger.Info("Turning off HTTP request logging.")
	}
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", logging.HeaderRequestID},
			ExposeHeaders: []string{logging.HeaderRequestID},
			MaxAge:        12 * time.Hour,
		}))
	}
	router.GET("/health", s.health)
	router.GET("/contacts", s.findContacts)
	router.POST("/contacts", s.createContact)
	router.GET("/contacts/:id", s.findContactByID)
	router.PUT("/contacts/:id", s.updateContactByID)
	router.PATCH("/contacts/:id", s.updateContactByID)
	router.DELETE("/contacts/:id", s.deleteContactByID)
	router.GET("/search", s.searchContacts)
	router.GET("/birthdays", s.upcomingBirthdays)
	return router
}

// health responds with OK if the database can be reached.
//
// Example REST API call:
//
//	> curl http://localhost:8080/health
func (s *Service) health(c *gin.Context) {
	if err := s.contacts.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("database not reachable", zap.Error(err))
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}

// findContacts responds with a list of contacts as JSON.
//
// The URL parameters 'firstname' and 'lastname' are interpreted as the beginning of the first name
// or last name of the contact.
//
// The URL parameter 'birthday' consists of a month part and a day part, separated by '-'. The call
// returns all contacts that have their birthday on this month and day, regardless of the year.
//
// The URL parameter 'limit' specifies how many contacts matching the search criteria are returned,
// 100 by default. The URL parameter 'offset' (or its alias 'skip') specifies how many items from
// the sorted list of results are skipped in the beginning.
//
// The URL parameter 'orderby' specifies the contact property by which the results shall be sorted.
// Valid values are 'id', 'first_name', 'last_name', 'email', 'phone', and 'birth_date'. If
// 'ascending' is set to 'false' then the sort order is reversed.
//
// REST API calls:
//
//	> curl "http://localhost:8080/contacts"
//	> curl "http://localhost:8080/contacts?firstname=Ji"
//	> curl "http://localhost:8080/contacts?birthday=11-29"
//	> curl "http://localhost:8080/contacts?limit=20&offset=60"
//	> curl "http://localhost:8080/contacts?orderby=birth_date&ascending=false"
func (s *Service) findContacts(c *gin.Context) {
	month, day, ok := parseBirthday(c)
	if !ok {
		return
	}
	limit, offset, ok := parseLimitAndOffset(c)
	if !ok {
		return
	}
	orderBy, descending, ok := parseOrderbyAndAscending(c)
	if !ok {
		return
	}
	contacts, err := s.contacts.List(c.Request.Context(), store.Filter{
		FirstName:  c.Query("firstname"),
		LastName:   c.Query("lastname"),
		BirthMonth: month,
		BirthDay:   day,
		OrderBy:    orderBy,
		Descending: descending,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// searchContacts responds with the contacts whose first name, last name or e-mail address
// contains the mandatory URL parameter 'q', ignoring case. It supports 'limit' and 'offset'.
//
// Example REST API call:
//
//	> curl "http://localhost:8080/search?q=muster"
func (s *Service) searchContacts(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		abortWithMessage(c, http.StatusBadRequest, "invalid q parameter")
		return
	}
	limit, offset, ok := parseLimitAndOffset(c)
	if !ok {
		return
	}
	contacts, err := s.contacts.Search(c.Request.Context(), q, limit, offset)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// upcomingBirthdays responds with the contacts whose next birthday is within the number of days
// given by the URL parameter 'days' (1 to 365, default 7), counting today. The contacts are
// ordered by the number of days until their birthday.
//
// Example REST API call:
//
//	> curl "http://localhost:8080/birthdays?days=30"
func (s *Service) upcomingBirthdays(c *gin.Context) {
	days := defaultBirthdayDays
	if value := c.Query("days"); value != "" {
		var err error
		days, err = strconv.Atoi(value)
		if err != nil || days < 1 || days > maxBirthdayDays {
			abortWithMessage(c, http.StatusBadRequest, "invalid days parameter")
			return
		}
	}

	// The whole table is loaded because the wraparound at the end of the year is hard to express
	// in SQL.
	all, err := s.contacts.All(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	upcoming := birthday.Upcoming(s.today(), days, all, func(contact model.Contact) civil.Date {
		return contact.BirthDate
	})
	c.IndentedJSON(http.StatusOK, upcoming)
}

// parseBirthday inspects the 'birthday' URL parameter and determines month and day of the
// contact's birthday. Both are zero if the parameter is missing.
func parseBirthday(c *gin.Context) (month int, day int, success bool) {
	value := c.Query("birthday")
	if value == "" {
		return 0, 0, true
	}
	before, after, found := strings.Cut(value, "-")
	if !found {
		abortWithMessage(c, http.StatusBadRequest, "invalid birthday URL parameter")
		return 0, 0, false
	}
	month, errMonth := strconv.Atoi(before)
	day, errDay := strconv.Atoi(after)
	if errMonth != nil || errDay != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		abortWithMessage(c, http.StatusBadRequest, "invalid birthday URL parameter")
		return 0, 0, false
	}
	return month, day, true
}

// parseLimitAndOffset inspects the URL parameters and determines values for limit and offset of
// the result set. 'skip' is accepted as an alias of 'offset'.
func parseLimitAndOffset(c *gin.Context) (limit uint64, offset uint64, success bool) {
	limit = defaultLimit
	if value := c.Query("limit"); value != "" {
		parsed, err := strconv.ParseUint(value, 10, 63)
		if err != nil || parsed < 1 {
			abortWithMessage(c, http.StatusBadRequest, "invalid limit parameter")
			return 0, 0, false
		}
		limit = parsed
	}
	value := c.Query("offset")
	if value == "" {
		value = c.Query("skip")
	}
	if value != "" {
		parsed, err := strconv.ParseUint(value, 10, 63)
		if err != nil {
			abortWithMessage(c, http.StatusBadRequest, "invalid offset parameter")
			return 0, 0, false
		}
		offset = parsed
	}
	return limit, offset, true
}

// parseOrderbyAndAscending inspects the URL parameters and determines the sort column and
// direction of the result set.
func parseOrderbyAndAscending(c *gin.Context) (orderBy string, descending bool, success bool) {
	orderBy = c.DefaultQuery("orderby", "id")
	if !contains(store.SortColumns, orderBy) {
		abortWithMessage(c, http.StatusBadRequest, "invalid orderby parameter")
		return "", false, false
	}
	ascending := c.DefaultQuery("ascending", "true")
	if !contains(allowedAscending, ascending) {
		abortWithMessage(c, http.StatusBadRequest, "invalid ascending parameter")
		return "", false, false
	}
	return orderBy, ascending == "false", true
}

// contains returns true if a string is present in a slice.
func contains(slice []string, str string) bool {
	for _, v := range slice {
		if v == str {
			return true
		}
	}
	return false
}

// createContact inserts the contact specified in the request's JSON into the database. It responds
// with the full contact data including the newly assigned id.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Content-Type: application/json" --data '{"first_name": "Hans", "last_name": "Wurst", "email": "hans@example.org", "phone": "0815 4711", "birth_date": "1969-03-02"}'
func (s *Service) createContact(c *gin.Context) {
	var input model.ContactCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithMessage(c, http.StatusBadRequest, bindingMessage(err))
		return
	}
	contact, err := s.contacts.Create(c.Request.Context(), input)
	if errors.Is(err, store.ErrDuplicateEmail) {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, contact)
}

// findContactByID locates the contact whose ID value matches the id parameter of the request URL,
// then returns that contact as a response.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56
func (s *Service) findContactByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	contact, err := s.contacts.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		abortWithMessage(c, http.StatusNotFound, "contact not found")
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// updateContactByID updates the contact whose ID value matches the id parameter of the request
// URL, updates the values specified in the JSON (and only those), and finally responds with the
// new version of the contact. A note can be removed by sending null.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/contacts/56 --request "PUT" --include --header "Content-Type: application/json" --data '{"phone": "81970 12"}'
//	> curl http://localhost:8080/contacts/56 --request "PATCH" --include --header "Content-Type: application/json" --data '{"note": null}'
func (s *Service) updateContactByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var patch model.ContactPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWithMessage(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	// It only makes sense to continue if we have at least one value to update.
	if patch.IsEmpty() {
		abortWithMessage(c, http.StatusBadRequest, store.ErrEmptyPatch.Error())
		return
	}
	if err := validatePatch(patch); err != nil {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	contact, err := s.contacts.Update(c.Request.Context(), id, patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		abortWithMessage(c, http.StatusNotFound, "contact not found")
	case errors.Is(err, store.ErrDuplicateEmail):
		abortWithMessage(c, http.StatusBadRequest, err.Error())
	case err != nil:
		s.internalError(c, err)
	default:
		c.IndentedJSON(http.StatusOK, contact)
	}
}

// deleteContactByID deletes the contact whose ID value matches the id parameter of the request URL
// from the database. It responds with No Content.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56 --request "DELETE"
func (s *Service) deleteContactByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	err := s.contacts.Delete(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		abortWithMessage(c, http.StatusNotFound, "contact not found")
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseID reads the id parameter of the request URL. Ids that are not numbers can never match a
// contact, so they are answered with Not Found.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithMessage(c, http.StatusNotFound, "invalid id parameter")
		return 0, false
	}
	return id, true
}

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// internalError logs an unexpected error and responds with Internal Server Error.
func (s *Service) internalError(c *gin.Context, err error) {
	s.logger.Error("request failed",
		zap.Error(err),
		zap.String("path", c.FullPath()),
		zap.String("request_id", logging.RequestID(c)),
	)
	_ = c.Error(err)
	abortWithMessage(c, http.StatusInternalServerError, "internal server error")
}
