package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	echoapi "github.com/quransn/academy/apps/api/echo"
	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/auth"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/content"
	"github.com/quransn/academy/core/enrollment"
	"github.com/quransn/academy/core/forum"
	"github.com/quransn/academy/core/library"
	"github.com/quransn/academy/core/live"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/quiz"
	"github.com/quransn/academy/core/report"
	"github.com/quransn/academy/core/user"
	"github.com/quransn/academy/services/chat"
	"github.com/quransn/academy/services/prayer"
	"github.com/quransn/academy/services/quran"
	testutil "github.com/quransn/academy/tests"
)

const testPassword = "Bismillah-2024"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type (
	prayerFake struct{}

	quranFake struct {
		err error
	}

	chatFake struct {
		history []chat.Message
	}
)

func (prayerFake) Timings(_ context.Context, date time.Time) prayer.Schedule {
	return prayer.Schedule{Date: date.Format("02-01-2006"), City: "Dakar", Timings: prayer.Timings{"Fajr": "05:45"}}
}

func (quranFake) Editions() []string { return []string{"quran-uthmani", "fr.hamidullah"} }

func (q quranFake) Surah(_ context.Context, number int, edition string) (quran.Surah, error) {
	if q.err != nil {
		return quran.Surah{}, q.err
	}
	return quran.Surah{Number: number, EnglishName: "Al-Faatiha", Edition: edition}, nil
}

func (c *chatFake) Reply(_ context.Context, usr user.User, history []chat.Message, text string) (chat.Message, error) {
	c.history = history
	return chat.Message{Role: chat.RoleModel, Text: "Salam " + usr.FirstName}, nil
}

// app is a server backed by an in-memory database.
type app struct {
	*echoapi.Server
	env     *testutil.Env
	auth    *auth.Service
	classes *class.Service
	chat    *chatFake
}

func setup(t *testing.T, opts ...func(*echoapi.ServerDeps)) *app {
	t.Helper()
	env := testutil.NewEnv(t)
	conf := env.Conf

	usrSvc := user.NewService(env.DB, env.Validate, env.Dispatcher, env.Mail, conf)
	authSvc := auth.NewService(env.DB, usrSvc, nil, env.Dispatcher, env.Validate, conf)
	classSvc := class.NewService(env.DB, env.Validate)
	chatSvc := new(chatFake)

	deps := echoapi.ServerDeps{
		Conf:       conf,
		Logger:     env.Logger,
		Validate:   env.Validate,
		Translator: env.Translator,

		AuthSvc:         authSvc,
		UserSvc:         usrSvc,
		ClassSvc:        classSvc,
		EnrollmentSvc:   enrollment.NewService(env.DB, env.Dispatcher, conf),
		ContentSvc:      content.NewService(env.DB, env.Validate, env.Dispatcher, conf),
		QuizSvc:         quiz.NewService(env.DB, env.Validate, env.Dispatcher, conf),
		LiveSvc:         live.NewService(env.DB, env.Validate, env.Dispatcher, nil, env.Logger, conf),
		NotificationSvc: notification.NewService(env.DB),
		ForumSvc:        forum.NewService(env.DB, env.Validate, conf),
		LibrarySvc:      library.NewService(env.DB, env.Validate),
		ReportSvc:       report.NewService(env.DB),

		Prayer: prayerFake{},
		Quran:  quranFake{},
		Chat:   chatSvc,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &app{
		Server:  echoapi.NewServer(deps),
		env:     env,
		auth:    authSvc,
		classes: classSvc,
		chat:    chatSvc,
	}
}

// createUser stores a user that can log in with testPassword.
func (a *app) createUser(t *testing.T, firstName string, opts ...testutil.UserOption) user.User {
	t.Helper()
	return testutil.CreateUser(t, a.env.DB, firstName, testPassword, opts...)
}

func (a *app) createAdmin(t *testing.T, firstName string) user.User {
	t.Helper()
	return a.createUser(t, firstName, testutil.WithRole(user.RoleAdmin))
}

// getToken opens a session for usr on the portal of their role.
func (a *app) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	sess, _, err := a.auth.Login(context.Background(), auth.Credentials{Email: usr.Email, Password: testPassword, Portal: usr.Role})
	require.NoError(t, err, "getToken()")
	token, err := echoapi.GenerateToken(a.env.Conf, sess)
	require.NoError(t, err, "getToken()")
	return token
}

// createClass stores a mixed class with the given students on its roster.
func (a *app) createClass(t *testing.T, name string, students ...user.User) class.Class {
	t.Helper()
	cls, err := a.classes.Create(context.Background(), class.NewClass{Name: name, Level: user.LevelTitles[0], Gender: user.GenderMixed})
	require.NoError(t, err)
	for _, s := range students {
		cls.StudentIDs = append(cls.StudentIDs, s.ID)
	}
	err = a.env.DB.Update(context.Background(), func(tx core.DBTx) error {
		return class.Save(tx, cls)
	})
	require.NoError(t, err)
	return cls
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (a *app) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			a.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

// checkCodeAndData compares the response to the test. A nil wantData only checks the code.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
