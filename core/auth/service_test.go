package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/auth"
	"github.com/quransn/academy/core/user"
	testutil "github.com/quransn/academy/tests"
)

const pwd = "Salam2024"

type verifierMock struct {
	profiles map[string]user.GoogleProfile
}

func (v verifierMock) Verify(_ context.Context, idToken string) (user.GoogleProfile, error) {
	p, ok := v.profiles[idToken]
	if !ok {
		return user.GoogleProfile{}, errors.New("bad token")
	}
	return p, nil
}

func newService(t *testing.T) (*auth.Service, *testutil.Env) {
	env := testutil.NewEnv(t)
	users := user.NewService(env.DB, env.Validate, env.Dispatcher, env.Mail, env.Conf)
	verifier := verifierMock{profiles: map[string]user.GoogleProfile{
		"good": {Sub: "g-42", Email: "khadija@gmail.com", Name: "Khadija Sow"},
	}}
	return auth.NewService(env.DB, users, verifier, env.Dispatcher, env.Validate, env.Conf), env
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	svc, env := newService(t)
	student := testutil.CreateUser(t, env.DB, "fatou", pwd)
	admin := testutil.CreateUser(t, env.DB, "admin", pwd, testutil.WithRole(user.RoleAdmin))

	tests := []struct {
		name    string
		creds   auth.Credentials
		wantUsr string
		wantErr error
	}{
		{"student portal", auth.Credentials{Email: " fatou@test.sn ", Password: pwd, Portal: user.RoleStudent}, student.ID, nil},
		{"admin portal", auth.Credentials{Email: admin.Email, Password: pwd, Portal: user.RoleAdmin}, admin.ID, nil},
		{"student on admin portal", auth.Credentials{Email: student.Email, Password: pwd, Portal: user.RoleAdmin}, "", auth.ErrWrongPortal},
		{"admin on student portal", auth.Credentials{Email: admin.Email, Password: pwd, Portal: user.RoleStudent}, "", auth.ErrWrongPortal},
		{"wrong password", auth.Credentials{Email: student.Email, Password: "nope", Portal: user.RoleStudent}, "", auth.ErrInvalidCredentials},
		{"email case differs", auth.Credentials{Email: "Fatou@test.sn", Password: pwd, Portal: user.RoleStudent}, "", auth.ErrInvalidCredentials},
		{"unknown email", auth.Credentials{Email: "x@test.sn", Password: pwd, Portal: user.RoleStudent}, "", auth.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, usr, err := svc.Login(ctx, tt.creds)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Empty(t, sess.ID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsr, usr.ID)
			assert.Equal(t, tt.wantUsr, sess.UserID)
			assert.Equal(t, usr.Role, sess.Role)
			assert.False(t, usr.LastLogin.IsZero())

			gotSess, gotUsr, err := svc.Authenticate(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, sess.ID, gotSess.ID)
			assert.Equal(t, usr.ID, gotUsr.ID)
		})
	}

	t.Run("missing portal", func(t *testing.T) {
		_, _, err := svc.Login(ctx, auth.Credentials{Email: student.Email, Password: pwd})
		assert.Error(t, err)
	})
}

func TestService_Sessions(t *testing.T) {
	ctx := context.Background()
	svc, env := newService(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)
	student := testutil.CreateUser(t, env.DB, "fatou", pwd)

	login := func() auth.Session {
		sess, _, err := svc.Login(ctx, auth.Credentials{Email: student.Email, Password: pwd, Portal: user.RoleStudent})
		require.NoError(t, err)
		return sess
	}

	t.Run("logout", func(t *testing.T) {
		sess := login()
		require.NoError(t, svc.Logout(ctx, sess.ID))
		_, _, err := svc.Authenticate(ctx, sess.ID)
		assert.Equal(t, auth.ErrSessionExpired, err)
		assert.NoError(t, svc.Logout(ctx, sess.ID))
	})

	t.Run("expiry and purge", func(t *testing.T) {
		old := login()
		testutil.FreezeTime(t, now.Add(env.Conf.Server.SessionTTL-time.Hour))
		fresh := login()

		testutil.FreezeTime(t, now.Add(env.Conf.Server.SessionTTL))
		_, _, err := svc.Authenticate(ctx, old.ID)
		assert.Equal(t, auth.ErrSessionExpired, err)
		_, _, err = svc.Authenticate(ctx, fresh.ID)
		assert.NoError(t, err)

		n, err := svc.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		err = env.DB.View(ctx, func(tx core.DBTx) error {
			ok, err := core.RecordExists(tx, auth.Collection, fresh.ID)
			assert.True(t, ok)
			return err
		})
		require.NoError(t, err)
	})
}

func TestService_LoginWithGoogle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	sess, usr, err := svc.LoginWithGoogle(ctx, auth.GoogleCredentials{IDToken: "good"})
	require.NoError(t, err)
	assert.Equal(t, auth.ProviderGoogle, sess.Provider)
	assert.Equal(t, "khadija@gmail.com", usr.Email)
	assert.Equal(t, user.RoleStudent, usr.Role)

	_, again, err := svc.LoginWithGoogle(ctx, auth.GoogleCredentials{IDToken: "good"})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, again.ID)

	_, _, err = svc.LoginWithGoogle(ctx, auth.GoogleCredentials{IDToken: "forged"})
	assert.Equal(t, auth.ErrInvalidIDToken, err)

	_, _, err = svc.LoginWithGoogle(ctx, auth.GoogleCredentials{IDToken: "good", Portal: user.RoleAdmin})
	assert.Equal(t, auth.ErrWrongPortal, err)
}
