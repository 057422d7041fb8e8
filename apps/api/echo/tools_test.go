package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/quransn/academy/apps/api/echo"
	"github.com/quransn/academy/core"
	"github.com/quransn/academy/services/chat"
	"github.com/quransn/academy/services/prayer"
	"github.com/quransn/academy/services/quran"
)

func Test_toolsApi_prayerTimes(t *testing.T) {
	a := setup(t)
	today := core.NowFunc().Format("02-01-2006")

	a.run(t, []httpTest{
		{
			name: "defaults to today", path: "/v1/prayer-times",
			wantData: marchallObj(t, prayer.Schedule{Date: today, City: "Dakar", Timings: prayer.Timings{"Fajr": "05:45"}}),
		},
		{
			name: "given date", path: "/v1/prayer-times?date=2025-03-01",
			wantData: marchallObj(t, prayer.Schedule{Date: "01-03-2025", City: "Dakar", Timings: prayer.Timings{"Fajr": "05:45"}}),
		},
		{name: "invalid date", path: "/v1/prayer-times?date=01/03/2025", wantCode: http.StatusBadRequest},
	})
}

func Test_toolsApi_quran(t *testing.T) {
	a := setup(t)
	a.run(t, []httpTest{
		{name: "editions", path: "/v1/quran/editions", wantData: marchallList(t, "quran-uthmani", "fr.hamidullah")},
		{
			name: "surah", path: "/v1/quran/surahs/1?edition=fr.hamidullah",
			wantData: marchallObj(t, quran.Surah{Number: 1, EnglishName: "Al-Faatiha", Edition: "fr.hamidullah"}),
		},
		{name: "not a number", path: "/v1/quran/surahs/fatiha", wantCode: http.StatusBadRequest},
	})

	down := setup(t, func(deps *echoapi.ServerDeps) { deps.Quran = quranFake{err: quran.ErrUnavailable} })
	down.run(t, []httpTest{
		{name: "api unavailable", path: "/v1/quran/surahs/1", wantCode: http.StatusServiceUnavailable},
	})
}

func Test_toolsApi_chat(t *testing.T) {
	a := setup(t)
	token := a.getToken(t, a.createUser(t, "Awa"))
	history := []chat.Message{{Role: chat.RoleUser, Text: "Qu'est-ce que le tajwid ?"}, {Role: chat.RoleModel, Text: "L'art de réciter."}}

	a.run(t, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/chat",
			body: marchallObj(t, echoapi.ChatRequest{Message: "Salam"}), wantCode: http.StatusUnauthorized,
		},
	})

	var resp echoapi.ChatResponse
	a.do(t, http.MethodPost, "/v1/chat", token, echoapi.ChatRequest{History: history, Message: "Et le madd ?"}, http.StatusOK, &resp)
	assert.Equal(t, chat.Message{Role: chat.RoleModel, Text: "Salam Awa"}, resp.Reply)
	require.Len(t, a.chat.history, 2)
	assert.Equal(t, history, a.chat.history)
}

func Test_toolsApi_jobsNeedScheduler(t *testing.T) {
	a := setup(t)
	token := a.getToken(t, a.createAdmin(t, "Oustaz"))
	a.run(t, []httpTest{
		{name: "no scheduler, no route", path: "/v1/jobs", token: token, wantCode: http.StatusNotFound},
	})
}
