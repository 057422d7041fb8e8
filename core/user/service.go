package user

import (
	"context"
	"errors"
	"math/rand"
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/notification"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("user not found")
	ErrEmailExists         = errors.New("a user with this email already exists")
	ErrUnknownReferralCode = errors.New("unknown referral code")
	ErrNegativeXP          = errors.New("xp can only be awarded, not withdrawn")
	ErrInvalidPlan         = errors.New("unknown subscription plan")
	ErrUnknownBadge        = errors.New("unknown badge")
)

type Service struct {
	db       core.DB
	validate *validator.Validate
	notifier notification.Notifier
	mailSvc  core.EmailService
	tokens   tokenGenerator
	conf     *core.Config
	randIntn func(n int) int
}

func NewService(
	db core.DB,
	validate *validator.Validate,
	notifier notification.Notifier,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		db:       db,
		validate: validate,
		notifier: notifier,
		mailSvc:  mailSvc,
		tokens:   tokenGenerator{secretKey: []byte(conf.SecretKey), timeout: 3 * 24 * time.Hour},
		conf:     conf,
		randIntn: rand.Intn,
	}
}

func emailExistsError() error {
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

// Register creates a student account. Emails are unique (exact match).
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	var usr User
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		if _, err := findByEmail(tx, nu.Email); err == nil {
			return emailExistsError()
		} else if err != ErrNotFound {
			return err
		}

		now := core.NowFunc()
		usr = User{
			ID:               core.NewID(),
			FirstName:        nu.FirstName,
			LastName:         nu.LastName,
			Email:            nu.Email,
			Phone:            nu.Phone,
			Role:             RoleStudent,
			Gender:           nu.Gender,
			Level:            1,
			Badges:           []Badge{},
			SubscriptionPlan: PlanFree,
			JoinedAt:         now,
			UpdatedAt:        now,
		}

		var sponsor *User
		if nu.ReferralCode != "" {
			sp, err := findByReferralCode(tx, nu.ReferralCode)
			if err != nil {
				if err == ErrNotFound {
					return core.NewValidationError(ErrUnknownReferralCode,
						core.FieldError{Field: "referral_code", Error: ErrUnknownReferralCode.Error()})
				}
				return err
			}
			sponsor = &sp
			usr.ReferredBy = sp.ID
		}

		code, err := svc.newReferralCode(tx, usr.FirstName)
		if err != nil {
			return err
		}
		usr.ReferralCode = code

		if err = usr.SetPassword(nu.Password); err != nil {
			return err
		}
		if err = save(tx, usr); err != nil {
			return err
		}
		if err = notification.Publish(tx, notification.Event{
			Kind:  notification.KindUserRegistered,
			Actor: usr.FullName(),
		}); err != nil {
			return err
		}

		if sponsor != nil {
			return rewardSponsor(tx, *sponsor, now)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}

	svc.notifier.Notify(ctx)
	return usr, nil
}

// rewardSponsor unlocks the ambassador badge once enough students were sponsored.
func rewardSponsor(tx core.DBTx, sponsor User, now time.Time) error {
	referred, err := List(tx, func(u User) bool { return u.ReferredBy == sponsor.ID })
	if err != nil {
		return err
	}
	if len(referred) < AmbassadorReferrals {
		return nil
	}
	unlocked, err := unlockBadge(tx, &sponsor, BadgeAmbassador, now)
	if err != nil || !unlocked {
		return err
	}
	return save(tx, sponsor)
}

func referralPrefix(firstName string) string {
	runes := []rune(strings.ToUpper(firstName))
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes)
}

// newReferralCode draws the first 3 letters of the first name followed by a number in [0, 999].
// With UniqueReferralCodes, codes already in use are redrawn a bounded number of times.
func (svc *Service) newReferralCode(tx core.DBTx, firstName string) (string, error) {
	prefix := referralPrefix(firstName)
	var code string
	for i := 0; i < referralCodeAttempts; i++ {
		code = prefix + strconv.Itoa(svc.randIntn(1000))
		if !svc.conf.UniqueReferralCodes {
			return code, nil
		}
		if _, err := findByReferralCode(tx, code); err == ErrNotFound {
			return code, nil
		} else if err != nil {
			return "", err
		}
	}
	return code, nil // every draw collided: accept the duplicate
}

// FindOrCreateGoogleUser returns the account of a Google identity, creating a student on first login.
func (svc *Service) FindOrCreateGoogleUser(ctx context.Context, profile GoogleProfile) (User, bool, error) {
	var (
		usr     User
		created bool
	)
	email := core.CleanString(profile.Email)
	if email == "" {
		return User{}, false, core.NewValidationError(errors.New("google account has no email"))
	}

	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		created = false
		if usr, err = findByGoogleSub(tx, profile.Sub); err == nil {
			return nil
		} else if err != ErrNotFound {
			return err
		}

		// existing account with the same email: link it
		if usr, err = findByEmail(tx, email); err == nil {
			usr.GoogleSub = profile.Sub
			usr.UpdatedAt = core.NowFunc()
			return save(tx, usr)
		} else if err != ErrNotFound {
			return err
		}

		now := core.NowFunc()
		first, last := splitName(profile.Name, email)
		usr = User{
			ID:               core.NewID(),
			FirstName:        first,
			LastName:         last,
			Email:            email,
			Role:             RoleStudent,
			Level:            1,
			Badges:           []Badge{},
			SubscriptionPlan: PlanFree,
			JoinedAt:         now,
			UpdatedAt:        now,
			GoogleSub:        profile.Sub,
		}
		if usr.ReferralCode, err = svc.newReferralCode(tx, first); err != nil {
			return err
		}
		// unusable password: google accounts log in with their id token
		if err = usr.SetPassword(core.NewID()); err != nil {
			return err
		}
		if err = save(tx, usr); err != nil {
			return err
		}
		created = true
		return notification.Publish(tx, notification.Event{
			Kind:  notification.KindUserRegistered,
			Actor: usr.FullName(),
		})
	})
	if err != nil {
		return User{}, false, err
	}
	if created {
		svc.notifier.Notify(ctx)
	}
	return usr, created, nil
}

func splitName(name, email string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return email[:strings.Index(email+"@", "@")], ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// CreateAdmin creates an admin account, or promotes and resets the password of the account using that email.
func (svc *Service) CreateAdmin(ctx context.Context, na NewAdmin) (User, error) {
	if err := na.Validate(svc.validate); err != nil {
		return User{}, err
	}

	var usr User
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		now := core.NowFunc()
		usr, err = findByEmail(tx, na.Email)
		switch err {
		case nil:
		case ErrNotFound:
			usr = User{
				ID:               core.NewID(),
				Email:            na.Email,
				Level:            1,
				Badges:           []Badge{},
				SubscriptionPlan: PlanPremiumYearly,
				JoinedAt:         now,
			}
			if usr.ReferralCode, err = svc.newReferralCode(tx, na.FirstName); err != nil {
				return err
			}
		default:
			return err
		}
		usr.FirstName = na.FirstName
		usr.LastName = na.LastName
		usr.Role = RoleAdmin
		usr.UpdatedAt = now
		if err = usr.SetPassword(na.Password); err != nil {
			return err
		}
		return save(tx, usr)
	})
	return usr, err
}

// Default admin account created on first start.
const (
	DefaultAdminEmail    = "admin@quransn.com"
	DefaultAdminPassword = "admin123"
)

// EnsureAdmin creates the default admin when no admin exists yet.
func (svc *Service) EnsureAdmin(ctx context.Context) (User, bool, error) {
	var (
		usr     User
		created bool
	)
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		admins, err := List(tx, func(u User) bool { return u.IsAdmin() })
		if err != nil {
			return err
		}
		if len(admins) > 0 {
			usr = admins[0]
			return nil
		}

		now := core.NowFunc()
		usr = User{
			ID:               core.NewID(),
			FirstName:        "Admin",
			LastName:         "Principal",
			Email:            DefaultAdminEmail,
			Phone:            "000000000",
			Role:             RoleAdmin,
			Gender:           GenderMale,
			Level:            1,
			Badges:           []Badge{},
			SubscriptionPlan: PlanPremiumYearly,
			ReferralCode:     "ADMIN",
			JoinedAt:         now,
			UpdatedAt:        now,
		}
		if err = usr.SetPassword(DefaultAdminPassword); err != nil {
			return err
		}
		created = true
		return save(tx, usr)
	})
	return usr, created, err
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	var usr User
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		usr, err = Get(tx, id)
		return err
	})
	return usr, err
}

// GetByEmail finds a user by exact email.
func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	var usr User
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		usr, err = findByEmail(tx, core.CleanString(email))
		return err
	})
	return usr, err
}

var orderingFields = map[string]func(a, b User) int{
	"xp":         func(a, b User) int { return a.XP - b.XP },
	"level":      func(a, b User) int { return a.Level - b.Level },
	"joined_at":  func(a, b User) int { return a.JoinedAt.Compare(b.JoinedAt) },
	"first_name": func(a, b User) int { return strings.Compare(a.FirstName, b.FirstName) },
	"last_name":  func(a, b User) int { return strings.Compare(a.LastName, b.LastName) },
	"email":      func(a, b User) int { return strings.Compare(a.Email, b.Email) },
}

// Query returns the users matching filter, in creation order unless orderings are given.
// Unknown ordering fields are ignored.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]User, error) {
	filter.Clean()
	var users []User
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		users, err = List(tx, filter.match)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(orderings) > 0 {
		sort.SliceStable(users, func(i, j int) bool {
			for _, ord := range orderings {
				cmp, ok := orderingFields[ord.Field]
				if !ok {
					continue
				}
				c := cmp(users[i], users[j])
				if c == 0 {
					continue
				}
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}
	return users, nil
}

// Update modifies the profile of the user `id`.
func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	var usr User
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		if usr, err = Get(tx, id); err != nil {
			return err
		}
		if err = uu.Validate(usr, svc.validate); err != nil {
			return err
		}
		usr.FirstName = uu.FirstName
		usr.LastName = uu.LastName
		usr.Phone = uu.Phone
		usr.Gender = uu.Gender
		if uu.Password != "" {
			if err = usr.SetPassword(uu.Password); err != nil {
				return err
			}
		}
		usr.UpdatedAt = core.NowFunc()
		return save(tx, usr)
	})
	return usr, err
}

// SetPassword replaces the password of the account using `email`, without applying the password policy.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	return svc.db.Update(ctx, func(tx core.DBTx) error {
		usr, err := findByEmail(tx, core.CleanString(email))
		if err != nil {
			return err
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		usr.UpdatedAt = core.NowFunc()
		return save(tx, usr)
	})
}

// RequestPasswordReset mails a password reset link to the account using `email`.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	q := make(url.Values)
	q.Set("uid", EncodeUID(usr))
	q.Set("token", svc.tokens.makeToken(usr))
	link := strings.TrimRight(svc.conf.FrontendBaseURL, "/") + "/password-reset?" + q.Encode()

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.FirstName, Address: usr.Email}},
		Subject: "Password reset",
		BodyStr: "Hello " + usr.FirstName + ",\n\n" +
			"You requested a password reset. Follow the link below to choose a new password.\n\n" +
			"If you did not make this request, ignore this email.",
		Link: link,
	})
	return nil
}

// ResetPassword sets a new password using a token sent by RequestPasswordReset.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	if err := rp.Validate(svc.validate); err != nil {
		return err
	}
	invalid := core.NewValidationError(errors.New("invalid or expired reset link"))

	id, err := decodeUID(rp.UID)
	if err != nil {
		return invalid
	}
	return svc.db.Update(ctx, func(tx core.DBTx) error {
		usr, err := Get(tx, id)
		if err != nil {
			if err == ErrNotFound {
				return invalid
			}
			return err
		}
		if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
			return invalid
		}
		if err = usr.SetPassword(rp.Password); err != nil {
			return err
		}
		usr.UpdatedAt = core.NowFunc()
		return save(tx, usr)
	})
}

// RecordLogin stamps the login of the user `id` within tx and maintains the daily login streak.
func RecordLogin(tx core.DBTx, id string, now time.Time) (User, error) {
	usr, err := Get(tx, id)
	if err != nil {
		return User{}, err
	}

	today := now.Truncate(24 * time.Hour)
	last := usr.LastLogin.Truncate(24 * time.Hour)
	switch {
	case usr.LastLogin.IsZero():
		usr.LoginStreak = 1
	case today.Equal(last):
		// same day
	case today.Sub(last) == 24*time.Hour:
		usr.LoginStreak++
	default:
		usr.LoginStreak = 1
	}
	usr.LastLogin = now

	if usr.LoginStreak >= AssiduityStreakDays {
		if _, err = unlockBadge(tx, &usr, BadgeAssiduity, now); err != nil {
			return User{}, err
		}
	}
	return usr, save(tx, usr)
}

// AddXP awards delta xp to the user `id`.
func (svc *Service) AddXP(ctx context.Context, id string, delta int) (User, error) {
	var usr User
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		usr, err = AwardXP(tx, id, delta)
		return err
	})
	if err != nil {
		return User{}, err
	}
	svc.notifier.Notify(ctx)
	return usr, nil
}

// AwardXP adds delta xp to the user `id` within tx. The level is recomputed as xp/100 + 1 and
// only ever raised; reaching ExpertBadgeXP unlocks the Expert badge once.
func AwardXP(tx core.DBTx, id string, delta int) (User, error) {
	if delta < 0 {
		return User{}, core.NewValidationError(ErrNegativeXP, core.FieldError{Field: "xp", Error: ErrNegativeXP.Error()})
	}
	usr, err := Get(tx, id)
	if err != nil || delta == 0 {
		return usr, err
	}

	now := core.NowFunc()
	usr.XP += delta
	if lvl := LevelForXP(usr.XP); lvl > usr.Level {
		usr.Level = lvl
		if err = notification.Publish(tx, notification.Event{
			Kind:       notification.KindLevelUp,
			Recipients: []notification.Recipient{Recipient(usr)},
			Level:      lvl,
		}); err != nil {
			return User{}, err
		}
	}
	if usr.XP >= ExpertBadgeXP {
		if _, err = unlockBadge(tx, &usr, BadgeExpert, now); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = now
	return usr, save(tx, usr)
}

// UnlockBadge gives the badge `badgeID` to the user `id` within tx. It reports false if already owned.
func UnlockBadge(tx core.DBTx, id, badgeID string) (bool, error) {
	usr, err := Get(tx, id)
	if err != nil {
		return false, err
	}
	unlocked, err := unlockBadge(tx, &usr, badgeID, core.NowFunc())
	if err != nil || !unlocked {
		return false, err
	}
	return true, save(tx, usr)
}

func unlockBadge(tx core.DBTx, usr *User, badgeID string, now time.Time) (bool, error) {
	if usr.HasBadge(badgeID) {
		return false, nil
	}
	badge, ok := FindBadge(badgeID)
	if !ok {
		return false, ErrUnknownBadge
	}
	badge.UnlockedAt = now
	usr.Badges = append(usr.Badges, badge)
	err := notification.Publish(tx, notification.Event{
		Kind:       notification.KindBadgeUnlocked,
		Recipients: []notification.Recipient{Recipient(*usr)},
		Subject:    badge.Name,
	})
	return err == nil, err
}

func FindPlan(plan Plan) (PlanInfo, bool) {
	for _, p := range Plans {
		if p.Plan == plan {
			return p, true
		}
	}
	return PlanInfo{}, false
}

// UpgradeSubscription switches the user `id` to plan. Premium plans run one month or one year from now.
func (svc *Service) UpgradeSubscription(ctx context.Context, id string, plan Plan) (User, error) {
	info, ok := FindPlan(plan)
	if !ok {
		return User{}, core.NewValidationError(ErrInvalidPlan, core.FieldError{Field: "plan", Error: ErrInvalidPlan.Error()})
	}

	var usr User
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		if usr, err = Get(tx, id); err != nil {
			return err
		}

		now := core.NowFunc()
		var expiry *time.Time
		switch plan {
		case PlanPremiumMonthly:
			exp := now.AddDate(0, 1, 0)
			expiry = &exp
		case PlanPremiumYearly:
			exp := now.AddDate(1, 0, 0)
			expiry = &exp
		}
		usr.SubscriptionPlan = plan
		usr.SubscriptionExpiry = expiry
		usr.UpdatedAt = now
		if err = save(tx, usr); err != nil {
			return err
		}
		if plan == PlanFree {
			return nil
		}
		return notification.Publish(tx, notification.Event{
			Kind:       notification.KindSubscriptionActivated,
			Recipients: []notification.Recipient{Recipient(usr)},
			Subject:    info.Name,
			At:         *expiry,
		})
	})
	if err != nil {
		return User{}, err
	}
	svc.notifier.Notify(ctx)
	return usr, nil
}

// ExpireSubscriptions moves every lapsed premium plan back to FREE and returns how many expired.
func (svc *Service) ExpireSubscriptions(ctx context.Context) (int, error) {
	var expired int
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		now := core.NowFunc()
		lapsed, err := List(tx, func(u User) bool {
			return u.IsPremium() && u.SubscriptionExpiry != nil && !u.SubscriptionExpiry.After(now)
		})
		if err != nil {
			return err
		}
		for _, usr := range lapsed {
			info, _ := FindPlan(usr.SubscriptionPlan)
			usr.SubscriptionPlan = PlanFree
			usr.SubscriptionExpiry = nil
			usr.UpdatedAt = now
			if err = save(tx, usr); err != nil {
				return err
			}
			if err = notification.Publish(tx, notification.Event{
				Kind:       notification.KindSubscriptionExpired,
				Recipients: []notification.Recipient{Recipient(usr)},
				Subject:    info.Name,
			}); err != nil {
				return err
			}
		}
		expired = len(lapsed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		svc.notifier.Notify(ctx)
	}
	return expired, nil
}

const LeaderboardSize = 10

// Leaderboard ranks students by xp, highest first; ties keep registration order.
func (svc *Service) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var students []User
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		students, err = List(tx, func(u User) bool { return u.IsStudent() })
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(students, func(i, j int) bool { return students[i].XP > students[j].XP })
	if len(students) > LeaderboardSize {
		students = students[:LeaderboardSize]
	}

	board := make([]LeaderboardEntry, 0, len(students))
	for i, s := range students {
		board = append(board, LeaderboardEntry{
			Rank:      i + 1,
			UserID:    s.ID,
			FirstName: s.FirstName,
			LastName:  s.LastName,
			XP:        s.XP,
			Level:     s.Level,
			Badges:    len(s.Badges),
		})
	}
	return board, nil
}
