package auth

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
)

var (
	// errors
	ErrInvalidCredentials = core.NewValidationError(errors.New("invalid email or password"))
	ErrWrongPortal        = core.NewPermissionError("this account cannot sign in on this portal")
	ErrInvalidIDToken     = core.NewValidationError(errors.New("invalid Google ID token"))
	ErrSessionExpired     = errors.New("session expired")
)

// IDTokenVerifier checks a Google ID token and returns the identity it asserts.
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (user.GoogleProfile, error)
}

type Service struct {
	db       core.DB
	users    *user.Service
	verifier IDTokenVerifier
	notifier notification.Notifier
	validate *validator.Validate
	ttl      time.Duration
}

func NewService(
	db core.DB,
	users *user.Service,
	verifier IDTokenVerifier,
	notifier notification.Notifier,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		db:       db,
		users:    users,
		verifier: verifier,
		notifier: notifier,
		validate: validate,
		ttl:      conf.Server.SessionTTL,
	}
}

// Login checks the credentials and opens a session. Accounts only sign in on the portal of their role.
func (svc *Service) Login(ctx context.Context, creds Credentials) (Session, user.User, error) {
	if err := creds.Validate(svc.validate); err != nil {
		return Session{}, user.User{}, err
	}

	usr, err := svc.users.GetByEmail(ctx, creds.Email)
	if err != nil {
		if err == user.ErrNotFound {
			return Session{}, user.User{}, ErrInvalidCredentials
		}
		return Session{}, user.User{}, err
	}
	if err = usr.CheckPassword(creds.Password); err != nil {
		return Session{}, user.User{}, ErrInvalidCredentials
	}
	if usr.Role != creds.Portal {
		return Session{}, user.User{}, ErrWrongPortal
	}
	return svc.open(ctx, usr, ProviderPassword)
}

// LoginWithGoogle opens a session for the owner of a verified Google ID token,
// registering a student on first login.
func (svc *Service) LoginWithGoogle(ctx context.Context, creds GoogleCredentials) (Session, user.User, error) {
	if err := creds.Validate(svc.validate); err != nil {
		return Session{}, user.User{}, err
	}
	if svc.verifier == nil {
		return Session{}, user.User{}, ErrInvalidIDToken
	}

	profile, err := svc.verifier.Verify(ctx, creds.IDToken)
	if err != nil {
		return Session{}, user.User{}, ErrInvalidIDToken
	}
	usr, _, err := svc.users.FindOrCreateGoogleUser(ctx, profile)
	if err != nil {
		return Session{}, user.User{}, err
	}
	if usr.Role != creds.Portal {
		return Session{}, user.User{}, ErrWrongPortal
	}
	return svc.open(ctx, usr, ProviderGoogle)
}

func (svc *Service) open(ctx context.Context, usr user.User, provider string) (Session, user.User, error) {
	var sess Session
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		now := core.NowFunc()
		var err error
		if usr, err = user.RecordLogin(tx, usr.ID, now); err != nil {
			return err
		}
		sess = Session{
			ID:        core.NewID(),
			UserID:    usr.ID,
			Role:      usr.Role,
			Provider:  provider,
			CreatedAt: now,
			ExpiresAt: now.Add(svc.ttl),
		}
		return core.PutRecord(tx, Collection, sess.ID, sess)
	})
	if err != nil {
		return Session{}, user.User{}, err
	}
	svc.notifier.Notify(ctx)
	return sess, usr, nil
}

// Authenticate returns the live session `id` and its user.
func (svc *Service) Authenticate(ctx context.Context, id string) (Session, user.User, error) {
	var (
		sess Session
		usr  user.User
	)
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		if sess, err = core.GetRecord[Session](tx, Collection, id); err != nil {
			if err == core.ErrRecordNotFound {
				return ErrSessionExpired
			}
			return err
		}
		if sess.Expired(core.NowFunc()) {
			return ErrSessionExpired
		}
		if usr, err = user.Get(tx, sess.UserID); err == user.ErrNotFound {
			return ErrSessionExpired
		}
		return err
	})
	if err != nil {
		return Session{}, user.User{}, err
	}
	return sess, usr, nil
}

// Logout closes the session `id`. Closing an unknown session is a no-op.
func (svc *Service) Logout(ctx context.Context, id string) error {
	return svc.db.Update(ctx, func(tx core.DBTx) error {
		return tx.Delete(Collection, id)
	})
}

// PurgeExpired deletes the expired sessions and returns how many were deleted.
func (svc *Service) PurgeExpired(ctx context.Context) (int, error) {
	var purged int
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		now := core.NowFunc()
		expired, err := core.ListRecords(tx, Collection, func(s Session) bool { return s.Expired(now) })
		if err != nil {
			return err
		}
		for _, s := range expired {
			if err = tx.Delete(Collection, s.ID); err != nil {
				return err
			}
		}
		purged = len(expired)
		return nil
	})
	return purged, err
}
