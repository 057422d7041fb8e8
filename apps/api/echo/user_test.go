package echoapi_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/quransn/academy/apps/api/echo"
	"github.com/quransn/academy/core/user"
	testutil "github.com/quransn/academy/tests"
)

func userIDs(users []user.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func Test_userApi_query(t *testing.T) {
	a := setup(t)
	admin := a.createAdmin(t, "Admin")
	awa := a.createUser(t, "Awa", testutil.WithXP(250), testutil.WithGender(user.GenderFemale))
	moussa := a.createUser(t, "Moussa", testutil.WithXP(40))
	binta := a.createUser(t, "Binta", testutil.WithXP(900), testutil.WithGender(user.GenderFemale))
	adminToken := a.getToken(t, admin)

	path := func(search, ordering string, role user.Role, gender user.Gender) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if role != "" {
			v.Add("role", string(role))
		}
		if gender != "" {
			v.Add("gender", string(gender))
		}
		return "/v1/users?" + v.Encode()
	}

	a.run(t, []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: a.getToken(t, awa), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "search (unknown)", path: path("lol", "", "", ""), token: adminToken, wantData: marchallList(t)},
	})

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"students", path("", "", user.RoleStudent, ""), []string{awa.ID, moussa.ID, binta.ID}},
		{"admins", path("", "", user.RoleAdmin, ""), []string{admin.ID}},
		{"women", path("", "", "", user.GenderFemale), []string{awa.ID, binta.ID}},
		{"search=MOUS", path("MOUS", "", "", ""), []string{moussa.ID}},
		{"order by -xp", path("", "-xp", user.RoleStudent, ""), []string{binta.ID, awa.ID, moussa.ID}},
		{"order by first_name", path("", "first_name", user.RoleStudent, ""), []string{awa.ID, binta.ID, moussa.ID}},
		{"unknown ordering keeps creation order", path("", "-lol", user.RoleStudent, ""), []string{awa.ID, moussa.ID, binta.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, adminToken)
			a.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var users []user.User
			unmarchall(t, rec, &users)
			assert.Equal(t, tt.want, userIDs(users))
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	a := setup(t)
	admin := a.createAdmin(t, "Admin")
	awa := a.createUser(t, "Awa")
	moussa := a.createUser(t, "Moussa")
	adminToken := a.getToken(t, admin)
	awaToken := a.getToken(t, awa)

	a.run(t, []httpTest{
		{name: "own account", path: "/v1/users/" + awa.ID, token: awaToken},
		{name: "me", path: "/v1/users/me", token: awaToken},
		{name: "someone else", path: "/v1/users/" + moussa.ID, token: awaToken, wantCode: http.StatusNotFound},
		{name: "admin reads anyone", path: "/v1/users/" + moussa.ID, token: adminToken},
		{name: "unknown", path: "/v1/users/nope", token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "students do not award xp", method: http.MethodPost, path: "/v1/users/me/xp",
			body: marchallObj(t, echoapi.XPRequest{Delta: 1000}), token: awaToken, wantCode: http.StatusForbidden,
		},
		{
			name: "unknown plan", method: http.MethodPut, path: "/v1/users/me/subscription",
			body: marchallObj(t, echoapi.SubscriptionRequest{Plan: "GOLD"}), token: awaToken, wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid gender", method: http.MethodPut, path: "/v1/users/me",
			body: marchallObj(t, user.UpdateUser{Gender: "Autre"}), token: awaToken, wantCode: http.StatusBadRequest,
		},
	})

	t.Run("update profile", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", awaToken, marchallObj(t, user.UpdateUser{FirstName: " Awa Khady "}))
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarchall(t, rec, &usr)
		assert.Equal(t, "Awa Khady", usr.FirstName)
		assert.Equal(t, awa.LastName, usr.LastName)
	})

	t.Run("upgrade subscription", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me/subscription", awaToken,
			marchallObj(t, echoapi.SubscriptionRequest{Plan: user.PlanPremiumMonthly}))
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarchall(t, rec, &usr)
		assert.Equal(t, user.PlanPremiumMonthly, usr.SubscriptionPlan)
		assert.NotNil(t, usr.SubscriptionExpiry)
	})

	t.Run("admin awards xp", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/"+moussa.ID+"/xp", adminToken, marchallObj(t, echoapi.XPRequest{Delta: 230}))
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarchall(t, rec, &usr)
		assert.Equal(t, 230, usr.XP)
		assert.Equal(t, 3, usr.Level)
	})
}

func Test_userApi_gamification(t *testing.T) {
	a := setup(t)
	awa := a.createUser(t, "Awa", testutil.WithXP(120))
	binta := a.createUser(t, "Binta", testutil.WithXP(600))
	a.createAdmin(t, "Admin")

	a.run(t, []httpTest{
		{
			name: "catalogue is public", path: "/v1/gamification",
			wantData: marchallObj(t, echoapi.GamificationResponse{
				Badges: user.Badges, LevelTitles: user.LevelTitles, XPPerLevel: user.XPPerLevel, Plans: user.Plans,
			}),
		},
		{name: "leaderboard needs a session", path: "/v1/leaderboard", wantCode: http.StatusUnauthorized},
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/leaderboard", a.getToken(t, awa))
	a.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entries []user.LeaderboardEntry
	unmarchall(t, rec, &entries)
	require.Len(t, entries, 2, "students only")
	assert.Equal(t, binta.ID, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, awa.ID, entries[1].UserID)
}
