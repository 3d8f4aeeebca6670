package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/application"
	"github.com/darasahq/darasa/core/cohort"
	"github.com/darasahq/darasa/core/ratelimit"
	"github.com/darasahq/darasa/core/session"
	"github.com/darasahq/darasa/core/user"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

type (
	mailRecorder struct {
		sent []*core.EmailMessage
	}

	testApp struct {
		server  *server
		conf    *core.Config
		usrSvc  *user.Service
		appSvc  *application.Service
		cohSvc  *cohort.Service
		mailSvc *mailRecorder
	}
)

func (r *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	r.sent = append(r.sent, messages...)
}

func newTestConfig() *core.Config {
	return &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "Darasa",

		SecretKey:                 []byte("test-secret"),
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,

		Server: core.ServerConfig{Address: "127.0.0.1:0", ShutdownTimeout: time.Second},
		Session: core.SessionConfig{
			AdminCookieName:   "darasa_admin_session",
			StudentCookieName: "darasa_student_session",
			AdminSecret:       []byte("admin-secret"),
			StudentSecret:     []byte("student-secret"),
			IdleTimeout:       30 * time.Minute,
			AbsoluteTimeout:   24 * time.Hour,
		},
		RateLimit: core.RateLimitConfig{
			DefaultWindow:      15 * time.Minute,
			DefaultMaxRequests: 300,
			AuthWindow:         15 * time.Minute,
			AuthMaxRequests:    10,
		},
		Rewards: core.RewardsConfig{SatsPerSession: 500},
	}
}

type nullLogger struct{}

func (nullLogger) Enable(bool)                        {}
func (nullLogger) Debug(string, ...interface{})       {}
func (nullLogger) Info(string, ...interface{})        {}
func (nullLogger) Warn(string, ...interface{})        {}
func (nullLogger) Error(string, ...interface{})       {}
func (nullLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }

// newTestApp builds a server over in-memory repos with rate limiting too
// lenient to interfere; tests that exercise the limiter inject their own
// rules.
func newTestApp(t *testing.T, rules ...*ratelimit.Rules) *testApp {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	conf := newTestConfig()
	mailSvc := &mailRecorder{}
	usrSvc := user.NewService(inmemdb.NewUserRepository(db), mailSvc, conf)
	appSvc := application.NewService(inmemdb.NewApplicationRepository(db), usrSvc, mailSvc, conf)
	cohSvc := cohort.NewService(inmemdb.NewCohortRepository(db), usrSvc, conf)

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	limitRules := ratelimit.NewRules(ratelimit.Policy{Window: time.Minute, MaxRequests: 100000})
	if len(rules) > 0 {
		limitRules = rules[0]
	}

	srv, err := NewServer(&ServerDeps{
		Conf:           conf,
		Logger:         nullLogger{},
		UserSvc:        usrSvc,
		AppSvc:         appSvc,
		CohortSvc:      cohSvc,
		Validate:       validate,
		Translator:     translator,
		RateLimitStore: ratelimit.NewMemoryStore(),
		RateLimitRules: limitRules,
		DisableReqLogs: true,
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	return &testApp{
		server:  srv.(*server),
		conf:    conf,
		usrSvc:  usrSvc,
		appSvc:  appSvc,
		cohSvc:  cohSvc,
		mailSvc: mailSvc,
	}
}

func (app *testApp) createUser(t *testing.T, name, email, pwd string, roles ...string) user.User {
	t.Helper()
	usr, err := app.usrSvc.Create(user.NewUser{
		Name:     name,
		Email:    email,
		Password: pwd,
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
	return usr
}

func (app *testApp) adminCookie(t *testing.T, usr user.User) *http.Cookie {
	return sessionCookie(t, app.server.adminKeeper, usr)
}

func (app *testApp) studentCookie(t *testing.T, usr user.User) *http.Cookie {
	return sessionCookie(t, app.server.studentKeeper, usr)
}

func sessionCookie(t *testing.T, keeper *session.Keeper, usr user.User) *http.Cookie {
	t.Helper()
	token, err := keeper.Sign(keeper.New(usr.ID, usr.Email, usr.PrimaryRole()))
	if err != nil {
		t.Fatalf("signing session: %v", err)
	}
	return &http.Cookie{Name: keeper.CookieName(), Value: token}
}

func (app *testApp) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range (&http.Response{Header: rec.Header()}).Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
