// Package apitest runs an in-process fake of the appointment API for tests.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/gobarber/gobarber/internal/platform/middleware"
)

// Request counter keys for the unparameterised routes.
const (
	KeySessions = "sessions"
	KeyUsers    = "users"
	KeyProfile  = "profile"
)

// MonthKey is the counter, delay and failure key of a month-availability request.
func MonthKey(providerID string, year int, month time.Month) string {
	return fmt.Sprintf("month:%s:%04d-%02d", providerID, year, int(month))
}

// DayKey is the counter, delay and failure key of an appointments/me request.
func DayKey(providerID string, year int, month time.Month, day int) string {
	return fmt.Sprintf("day:%s:%04d-%02d-%02d", providerID, year, int(month), day)
}

// User is the wire form of an account. Password never leaves the server.
type User struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	AvatarURL null.String `json:"avatar_url"`
	Password  string      `json:"-"`
}

type DayAvailability struct {
	Day       int  `json:"day"`
	Available bool `json:"available"`
}

type Client struct {
	Name      string      `json:"name"`
	AvatarURL null.String `json:"avatar_url"`
}

type Appointment struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Client Client `json:"user"`
}

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	OldPassword          string `json:"old_password"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type failure struct {
	status  int
	message string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSecret sets the HS256 signing secret.
func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

// WithTokenTTL sets the lifetime of tokens issued by POST sessions.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

// Server is a fake appointment API. All seeding methods are safe to call
// while requests are in flight.
type Server struct {
	logger   zerolog.Logger
	secret   []byte
	tokenTTL time.Duration
	echo     *echo.Echo

	mu           sync.Mutex
	users        map[string]*User
	availability map[string][]DayAvailability
	appointments map[string][]Appointment
	requests     map[string]int
	delays       map[string]time.Duration
	failures     map[string]failure
}

// New creates a Server with no users.
func New(opts ...Option) *Server {
	s := &Server{
		logger:       zerolog.Nop(),
		secret:       []byte("apitest-secret"),
		tokenTTL:     24 * time.Hour,
		users:        make(map[string]*User),
		availability: make(map[string][]DayAvailability),
		appointments: make(map[string][]Appointment),
		requests:     make(map[string]int),
		delays:       make(map[string]time.Duration),
		failures:     make(map[string]failure),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.RequestID(), middleware.Logger(s.logger), middleware.Recovery(s.logger))

	e.POST("/sessions", s.createSession)
	e.POST("/users", s.createUser)

	auth := e.Group("", s.authenticate)
	auth.PUT("/profile", s.updateProfile)
	auth.GET("/providers/:id/month-availability", s.monthAvailability)
	auth.GET("/appointments/me", s.providerAppointments)

	s.echo = e
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves s on a loopback listener closed when tb finishes.
func (s *Server) Start(tb testing.TB) *httptest.Server {
	tb.Helper()
	srv := httptest.NewServer(s.echo)
	tb.Cleanup(srv.Close)
	return srv
}

// AddUser registers an account and returns it.
func (s *Server) AddUser(name, email, password string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &User{ID: uuid.New().String(), Name: name, Email: email, Password: password}
	s.users[u.ID] = u
	return *u
}

// SetAvailability replaces the month-availability payload of a provider month.
func (s *Server) SetAvailability(providerID string, year int, month time.Month, flags []DayAvailability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability[MonthKey(providerID, year, month)] = append([]DayAvailability(nil), flags...)
}

// AddAppointment appends an appointment to the provider's day. date is sent
// verbatim, so malformed timestamps can be seeded. An empty ID gets a uuid.
func (s *Server) AddAppointment(providerID string, year int, month time.Month, day int, a Appointment) Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	key := DayKey(providerID, year, month, day)
	s.appointments[key] = append(s.appointments[key], a)
	return a
}

// SetDelay holds responses for key by d, or until the request is cancelled.
func (s *Server) SetDelay(key string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[key] = d
}

// SetFailure makes requests for key answer status with message.
func (s *Server) SetFailure(key string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = failure{status: status, message: message}
}

// ClearFailure removes a failure set with SetFailure.
func (s *Server) ClearFailure(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, key)
}

// Requests returns how many requests reached the handler for key.
func (s *Server) Requests(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

// User returns the stored account with id.
func (s *Server) User(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// IssueToken signs a token for userID that expires after ttl. A negative ttl
// yields an already expired token.
func (s *Server) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if header == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "JWT token is missing")
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid JWT token")
		}

		c.Set("user_id", claims.Subject)
		return next(c)
	}
}

// enter counts the request and applies any delay or failure set for key.
func (s *Server) enter(c echo.Context, key string) error {
	s.mu.Lock()
	s.requests[key]++
	delay := s.delays[key]
	fail, failing := s.failures[key]
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}
	if failing {
		return echo.NewHTTPError(fail.status, fail.message)
	}
	return nil
}

func (s *Server) createSession(c echo.Context) error {
	if err := s.enter(c, KeySessions); err != nil {
		return err
	}
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	u := s.findByEmailLocked(req.Email)
	var user User
	if u != nil {
		user = *u
	}
	s.mu.Unlock()

	if u == nil || user.Password != req.Password {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect email/password combination.")
	}

	token, err := s.IssueToken(user.ID, s.tokenTTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	return c.JSON(http.StatusOK, sessionResponse{Token: token, User: user})
}

func (s *Server) createUser(c echo.Context) error {
	if err := s.enter(c, KeyUsers); err != nil {
		return err
	}
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Validation fails")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByEmailLocked(req.Email) != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Email address already used.")
	}
	u := &User{ID: uuid.New().String(), Name: req.Name, Email: req.Email, Password: req.Password}
	s.users[u.ID] = u
	return c.JSON(http.StatusOK, *u)
}

func (s *Server) updateProfile(c echo.Context) error {
	if err := s.enter(c, KeyProfile); err != nil {
		return err
	}
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID(c)]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "User not found.")
	}
	if other := s.findByEmailLocked(req.Email); other != nil && other.ID != u.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "E-mail already in use.")
	}
	if req.Password != "" {
		if req.OldPassword == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "You need to inform the old password to set a new password.")
		}
		if req.OldPassword != u.Password {
			return echo.NewHTTPError(http.StatusBadRequest, "Old password does not match.")
		}
		if req.PasswordConfirmation != "" && req.PasswordConfirmation != req.Password {
			return echo.NewHTTPError(http.StatusBadRequest, "Password confirmation does not match.")
		}
		u.Password = req.Password
	}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	return c.JSON(http.StatusOK, *u)
}

func (s *Server) monthAvailability(c echo.Context) error {
	providerID := c.Param("id")
	year, err := intParam(c, "year")
	if err != nil {
		return err
	}
	month, err := intParam(c, "month")
	if err != nil {
		return err
	}
	if month < 1 || month > 12 {
		return echo.NewHTTPError(http.StatusBadRequest, "month must be between 1 and 12")
	}

	key := MonthKey(providerID, year, time.Month(month))
	if err := s.enter(c, key); err != nil {
		return err
	}

	s.mu.Lock()
	flags := append([]DayAvailability{}, s.availability[key]...)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, flags)
}

func (s *Server) providerAppointments(c echo.Context) error {
	year, err := intParam(c, "year")
	if err != nil {
		return err
	}
	month, err := intParam(c, "month")
	if err != nil {
		return err
	}
	day, err := intParam(c, "day")
	if err != nil {
		return err
	}

	key := DayKey(userID(c), year, time.Month(month), day)
	if err := s.enter(c, key); err != nil {
		return err
	}

	s.mu.Lock()
	appts := append([]Appointment{}, s.appointments[key]...)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, appts)
}

func (s *Server) findByEmailLocked(email string) *User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func userID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

func intParam(c echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a number", name))
	}
	return v, nil
}

// errorHandler writes errors in the API's {"status","message"} shape.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		message = fmt.Sprint(he.Message)
	}
	_ = c.JSON(status, map[string]string{"status": "error", "message": message})
}
