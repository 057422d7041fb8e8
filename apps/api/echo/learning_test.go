package echoapi_test

import (
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/quransn/academy/apps/api/echo"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/content"
	"github.com/quransn/academy/core/enrollment"
	"github.com/quransn/academy/core/live"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/quiz"
	"github.com/quransn/academy/core/report"
	"github.com/quransn/academy/core/user"
	testutil "github.com/quransn/academy/tests"
)

var pdfURL = "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\n%%EOF\n"))

// do sends an authed JSON request, checks the code and decodes the response into out (when not nil).
func (a *app) do(t *testing.T, method, path, token string, body interface{}, wantCode int, out interface{}) {
	t.Helper()
	var data []byte
	if body != nil {
		data = marchallObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	a.ServeHTTP(rec, req)
	require.Equal(t, wantCode, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	if out != nil {
		unmarchall(t, rec, out)
	}
}

// Test_learningPath follows a student from the enrollment request to the quiz of a class.
func Test_learningPath(t *testing.T) {
	a := setup(t)
	admin := a.createAdmin(t, "Oustaz")
	awa := a.createUser(t, "Awa", testutil.WithGender(user.GenderFemale))
	moussa := a.createUser(t, "Moussa")
	adminToken := a.getToken(t, admin)
	awaToken := a.getToken(t, awa)
	moussaToken := a.getToken(t, moussa)

	var cls class.Class
	a.do(t, http.MethodPost, "/v1/classes", adminToken,
		class.NewClass{Name: "Tajwid Sœurs", Level: user.LevelTitles[0], Gender: user.GenderFemale}, http.StatusCreated, &cls)
	a.do(t, http.MethodPost, "/v1/classes", awaToken,
		class.NewClass{Name: "x", Level: user.LevelTitles[0], Gender: user.GenderMixed}, http.StatusForbidden, nil)

	t.Run("classes are filtered by gender", func(t *testing.T) {
		var classes []class.Class
		a.do(t, http.MethodGet, "/v1/classes", awaToken, nil, http.StatusOK, &classes)
		assert.Len(t, classes, 1)
		a.do(t, http.MethodGet, "/v1/classes", moussaToken, nil, http.StatusOK, &classes)
		assert.Empty(t, classes)
		a.do(t, http.MethodGet, "/v1/classes/"+cls.ID, moussaToken, nil, http.StatusNotFound, nil)
		a.do(t, http.MethodGet, "/v1/classes?mine=true", awaToken, nil, http.StatusOK, &classes)
		assert.Empty(t, classes, "not on the roster yet")
	})

	var enr enrollment.Enrollment
	t.Run("enrollment", func(t *testing.T) {
		req := echoapi.EnrollmentRequest{ClassID: cls.ID}
		a.do(t, http.MethodPost, "/v1/enrollments", awaToken, req, http.StatusCreated, &enr)
		assert.Equal(t, enrollment.StatusPending, enr.Status)
		var again enrollment.Enrollment
		a.do(t, http.MethodPost, "/v1/enrollments", awaToken, req, http.StatusOK, &again)
		assert.Equal(t, enr.ID, again.ID)

		a.do(t, http.MethodPost, "/v1/enrollments", moussaToken, req, http.StatusForbidden, nil)
		a.do(t, http.MethodPost, "/v1/enrollments", adminToken, req, http.StatusForbidden, nil)

		var count echoapi.CountResponse
		a.do(t, http.MethodGet, "/v1/enrollments/pending-count", adminToken, nil, http.StatusOK, &count)
		assert.Equal(t, 1, count.Count)

		var enrs []enrollment.Enrollment
		a.do(t, http.MethodGet, "/v1/enrollments", moussaToken, nil, http.StatusOK, &enrs)
		assert.Empty(t, enrs, "students only see their own requests")

		a.do(t, http.MethodGet, "/v1/contents?class_id="+cls.ID, awaToken, nil, http.StatusForbidden, nil)
		a.do(t, http.MethodPost, "/v1/enrollments/"+enr.ID+"/approve", awaToken, nil, http.StatusForbidden, nil)
		a.do(t, http.MethodPost, "/v1/enrollments/"+enr.ID+"/approve", adminToken, nil, http.StatusOK, &enr)
		assert.Equal(t, enrollment.StatusApproved, enr.Status)
		a.do(t, http.MethodPost, "/v1/enrollments/"+enr.ID+"/reject", adminToken, nil, http.StatusConflict, nil)
		a.do(t, http.MethodPost, "/v1/enrollments/nope/approve", adminToken, nil, http.StatusNotFound, nil)
	})

	var doc content.Content
	t.Run("contents", func(t *testing.T) {
		a.do(t, http.MethodPost, "/v1/contents", adminToken, content.NewContent{
			ClassID: cls.ID, Title: "Règles du noun sakin", Type: content.TypeDocument, DataURL: pdfURL, FileName: "noun.pdf",
		}, http.StatusCreated, &doc)
		a.do(t, http.MethodPost, "/v1/contents", adminToken, content.NewContent{
			ClassID: cls.ID, Title: "Vidéo", Type: content.TypeVideo, DataURL: pdfURL,
		}, http.StatusBadRequest, nil)

		var contents []content.Content
		a.do(t, http.MethodGet, "/v1/contents", awaToken, nil, http.StatusOK, &contents)
		require.Len(t, contents, 1)
		a.do(t, http.MethodGet, "/v1/contents", moussaToken, nil, http.StatusOK, &contents)
		assert.Empty(t, contents)
		a.do(t, http.MethodGet, "/v1/contents/"+doc.ID, moussaToken, nil, http.StatusForbidden, nil)

		var view echoapi.ViewResponse
		a.do(t, http.MethodPost, "/v1/contents/"+doc.ID+"/view", awaToken, nil, http.StatusOK, &view)
		assert.True(t, view.FirstView)
		a.do(t, http.MethodPost, "/v1/contents/"+doc.ID+"/view", awaToken, nil, http.StatusOK, &view)
		assert.False(t, view.FirstView)

		var progress echoapi.ProgressResponse
		a.do(t, http.MethodGet, "/v1/classes/"+cls.ID+"/progress", awaToken, nil, http.StatusOK, &progress)
		assert.Equal(t, 100, progress.Progress)

		var viewed []string
		a.do(t, http.MethodGet, "/v1/contents/viewed", awaToken, nil, http.StatusOK, &viewed)
		assert.Equal(t, []string{doc.ID}, viewed)

		var cmt content.Comment
		a.do(t, http.MethodPost, "/v1/contents/"+doc.ID+"/comments", awaToken, content.NewComment{Text: "Jazakallahu khayran"}, http.StatusCreated, &cmt)
		assert.Equal(t, awa.ID, cmt.UserID)
		a.do(t, http.MethodPost, "/v1/contents/"+doc.ID+"/comments", awaToken, content.NewComment{}, http.StatusBadRequest, nil)
	})

	t.Run("quiz", func(t *testing.T) {
		var qz quiz.Quiz
		a.do(t, http.MethodPost, "/v1/quizzes", adminToken, quiz.NewQuiz{
			ClassID: cls.ID,
			Title:   "Noun sakin",
			Questions: []quiz.Question{
				{Type: quiz.TypeSingleChoice, Text: "Combien de règles ?", Points: 1, Choice: &quiz.Choice{Options: []string{"3", "4"}, Correct: []int{1}}},
			},
		}, http.StatusCreated, &qz)

		var quizzes []quiz.Quiz
		a.do(t, http.MethodGet, "/v1/quizzes?class_id="+cls.ID, awaToken, nil, http.StatusOK, &quizzes)
		require.Len(t, quizzes, 1)
		assert.Empty(t, quizzes[0].Questions[0].Choice.Correct, "students never see the keys")
		a.do(t, http.MethodGet, "/v1/quizzes/"+qz.ID, adminToken, nil, http.StatusOK, &qz)
		assert.Equal(t, []int{1}, qz.Questions[0].Choice.Correct)
		a.do(t, http.MethodGet, "/v1/quizzes/"+qz.ID, moussaToken, nil, http.StatusForbidden, nil)

		var att quiz.Attempt
		sub := quiz.Submission{Answers: map[string]quiz.Answer{qz.Questions[0].ID: {Choices: []int{1}}}, StartedAt: time.Now()}
		a.do(t, http.MethodPost, "/v1/quizzes/"+qz.ID+"/attempts", awaToken, sub, http.StatusCreated, &att)
		assert.Equal(t, awa.ID, att.UserID)
		assert.True(t, att.Passed)
		a.do(t, http.MethodPost, "/v1/quizzes/"+qz.ID+"/attempts", adminToken, sub, http.StatusForbidden, nil)

		var atts []quiz.Attempt
		a.do(t, http.MethodGet, "/v1/attempts", moussaToken, nil, http.StatusOK, &atts)
		assert.Empty(t, atts)
		a.do(t, http.MethodGet, "/v1/attempts?quiz_id="+qz.ID, adminToken, nil, http.StatusOK, &atts)
		assert.Len(t, atts, 1)
		a.do(t, http.MethodGet, "/v1/attempts/"+att.ID, awaToken, nil, http.StatusOK, nil)
		a.do(t, http.MethodGet, "/v1/attempts/"+att.ID, moussaToken, nil, http.StatusNotFound, nil)
	})

	t.Run("lives", func(t *testing.T) {
		var s live.Session
		a.do(t, http.MethodPost, "/v1/lives", adminToken, live.NewSession{
			ClassID: cls.ID, Title: "Révision", ScheduledAt: time.Now().Add(time.Hour),
		}, http.StatusCreated, &s)
		assert.Equal(t, live.FallbackMeetingLink, s.MeetingLink)

		var sessions []live.Session
		a.do(t, http.MethodGet, "/v1/lives?upcoming=true", awaToken, nil, http.StatusOK, &sessions)
		assert.Len(t, sessions, 1)
		a.do(t, http.MethodGet, "/v1/lives", moussaToken, nil, http.StatusOK, &sessions)
		assert.Empty(t, sessions)

		a.do(t, http.MethodPut, "/v1/lives/"+s.ID, adminToken, live.UpdateSession{RecordingURL: "https://youtu.be/abc"}, http.StatusOK, &s)
		assert.True(t, s.IsRecorded)
		a.do(t, http.MethodDelete, "/v1/lives/"+s.ID, awaToken, nil, http.StatusForbidden, nil)
		a.do(t, http.MethodDelete, "/v1/lives/"+s.ID, adminToken, nil, http.StatusNoContent, nil)
	})

	t.Run("notifications", func(t *testing.T) {
		var notifs []notification.Notification
		a.do(t, http.MethodGet, "/v1/notifications", awaToken, nil, http.StatusOK, &notifs)
		require.NotEmpty(t, notifs)
		for _, n := range notifs {
			assert.Equal(t, awa.ID, n.UserID)
		}

		a.do(t, http.MethodPost, "/v1/notifications/"+notifs[0].ID+"/read", moussaToken, nil, http.StatusNotFound, nil)
		var read notification.Notification
		a.do(t, http.MethodPost, "/v1/notifications/"+notifs[0].ID+"/read", awaToken, nil, http.StatusOK, &read)
		assert.True(t, read.IsRead)

		var count echoapi.CountResponse
		a.do(t, http.MethodPost, "/v1/notifications/read-all", awaToken, nil, http.StatusOK, &count)
		assert.Equal(t, len(notifs)-1, count.Count)
		a.do(t, http.MethodGet, "/v1/notifications/unread-count", awaToken, nil, http.StatusOK, &count)
		assert.Zero(t, count.Count)

		a.do(t, http.MethodGet, "/v1/notifications", adminToken, nil, http.StatusOK, &notifs)
		assert.NotEmpty(t, notifs, "admins read the admin channel")
	})

	t.Run("reports", func(t *testing.T) {
		var st report.Stats
		a.do(t, http.MethodGet, "/v1/stats", adminToken, nil, http.StatusOK, &st)
		assert.Equal(t, 2, st.TotalStudents)
		assert.Equal(t, 1, st.TotalClasses)
		assert.Equal(t, 1, st.ContentByType[content.TypeDocument])
		a.do(t, http.MethodGet, "/v1/stats", awaToken, nil, http.StatusForbidden, nil)

		var results []report.SearchResult
		a.do(t, http.MethodGet, "/v1/search?q=tajwid", awaToken, nil, http.StatusOK, &results)
		require.NotEmpty(t, results)
		assert.Equal(t, report.ResultClass, results[0].Type)
	})

	t.Run("class deletion", func(t *testing.T) {
		a.do(t, http.MethodDelete, "/v1/classes/"+cls.ID, adminToken, nil, http.StatusConflict, nil)
	})
}
