package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/quransn/academy/core"
)

const Collection = "users"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
)

type Gender string

const (
	GenderMale   Gender = "Homme"
	GenderFemale Gender = "Femme"
	GenderMixed  Gender = "Mixte" // classes only
)

type Plan string

const (
	PlanFree           Plan = "FREE"
	PlanPremiumMonthly Plan = "PREMIUM_MONTHLY"
	PlanPremiumYearly  Plan = "PREMIUM_YEARLY"
)

type PlanInfo struct {
	Plan      Plan   `json:"plan"`
	Name      string `json:"name"`
	PriceFCFA int    `json:"price_fcfa"`
	Period    string `json:"period,omitempty"`
}

var Plans = []PlanInfo{
	{Plan: PlanFree, Name: "Free"},
	{Plan: PlanPremiumMonthly, Name: "Premium Monthly", PriceFCFA: 5000, Period: "month"},
	{Plan: PlanPremiumYearly, Name: "Premium Yearly", PriceFCFA: 50000, Period: "year"},
}

// Gamification
const (
	XPPerLevel    = 100
	ExpertBadgeXP = 500

	BadgeAssiduity  = "b1"
	BadgeExpert     = "b2"
	BadgeCommenter  = "b3"
	BadgeAmbassador = "b4"
	BadgeReciter    = "b5"

	AssiduityStreakDays  = 7
	CommenterComments    = 10
	AmbassadorReferrals  = 5
	ReciterSubmissions   = 5
	referralCodeAttempts = 20
)

type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	UnlockedAt  time.Time `json:"unlocked_at,omitempty"`
}

// Badges is the badge catalogue.
var Badges = []Badge{
	{ID: BadgeAssiduity, Name: "Assiduité", Icon: "📅", Description: "Logged in 7 days in a row"},
	{ID: BadgeExpert, Name: "Expert", Icon: "🏆", Description: "Earned 500 XP"},
	{ID: BadgeCommenter, Name: "Commentateur", Icon: "💬", Description: "Posted 10 comments"},
	{ID: BadgeAmbassador, Name: "Ambassadeur", Icon: "🤝", Description: "Sponsored 5 new students"},
	{ID: BadgeReciter, Name: "Récitateur", Icon: "🎤", Description: "Submitted 5 audio recitations"},
}

// LevelTitles are the curriculum levels classes are labelled with.
var LevelTitles = []string{
	"Niveau 0 : Initiation",
	"Niveau 1 : Débutant",
	"Niveau 2 : Élémentaire",
	"Niveau 3 : Intermédiaire",
	"Niveau 4 : Intermédiaire+",
	"Niveau 5 : Avancé",
	"Niveau X : Expert",
}

func FindBadge(id string) (Badge, bool) {
	for _, b := range Badges {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// LevelForXP is the gamification level reached with xp points.
func LevelForXP(xp int) int {
	return xp/XPPerLevel + 1
}

type User struct {
	ID                 string     `json:"id"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone,omitempty"`
	Role               Role       `json:"role"`
	Gender             Gender     `json:"gender"`
	XP                 int        `json:"xp"`
	Level              int        `json:"level"`
	Badges             []Badge    `json:"badges"`
	SubscriptionPlan   Plan       `json:"subscription_plan"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`
	ReferralCode       string     `json:"referral_code"`
	ReferredBy         string     `json:"referred_by,omitempty"`
	LoginStreak        int        `json:"login_streak"`
	JoinedAt           time.Time  `json:"joined_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastLogin          time.Time  `json:"last_login,omitempty"`
	PasswordHash       []byte     `json:"-"`
	GoogleSub          string     `json:"-"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

func (u User) IsPremium() bool {
	return u.SubscriptionPlan == PlanPremiumMonthly || u.SubscriptionPlan == PlanPremiumYearly
}

func (u User) HasBadge(id string) bool {
	for _, b := range u.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// record is the stored form of a User: it keeps the secrets the API form hides.
type record struct {
	User
	PasswordHash []byte `json:"password_hash"`
	GoogleSub    string `json:"google_sub,omitempty"`
}

func toRecord(u User) record {
	return record{User: u, PasswordHash: u.PasswordHash, GoogleSub: u.GoogleSub}
}

func (r record) toUser() User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	u.GoogleSub = r.GoogleSub
	return u
}

// NewUser contains information needed to register a new student.
type NewUser struct {
	FirstName    string `json:"first_name" validate:"required,max=60"`
	LastName     string `json:"last_name" validate:"required,max=60"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"omitempty,phone"`
	Gender       Gender `json:"gender" validate:"required,oneof=Homme Femme"`
	Password     string `json:"password" validate:"required"`
	ReferralCode string `json:"referral_code" validate:"omitempty,max=12"` // sponsor's code
}

// Validate cleans the input. Emails are trimmed but kept case sensitive.
func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email)
	nu.Phone = core.CleanString(nu.Phone)
	nu.ReferralCode = strings.ToUpper(core.CleanString(nu.ReferralCode))
	return validate.Struct(nu)
}

// NewAdmin contains information needed to create (or update) an admin from the CLI.
type NewAdmin struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

func (na *NewAdmin) Validate(validate *validator.Validate) error {
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Email = core.CleanString(na.Email)
	return validate.Struct(na)
}

// UpdateUser defines what information may be provided to modify a profile.
type UpdateUser struct {
	FirstName       string `json:"first_name" validate:"omitempty,max=60"`
	LastName        string `json:"last_name" validate:"omitempty,max=60"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	Gender          Gender `json:"gender" validate:"omitempty,oneof=Homme Femme"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanString(uu.FirstName); name != "" {
		uu.FirstName = name
	} else {
		uu.FirstName = origUsr.FirstName
	}
	if name := core.CleanString(uu.LastName); name != "" {
		uu.LastName = name
	} else {
		uu.LastName = origUsr.LastName
	}
	if phone := core.CleanString(uu.Phone); phone != "" {
		uu.Phone = phone
	} else {
		uu.Phone = origUsr.Phone
	}
	if uu.Gender == "" {
		uu.Gender = origUsr.Gender
	}
	return validate.Struct(uu)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search string `query:"search"`
	Role   Role   `query:"role"`
	Gender Gender `query:"gender"`
	Plan   Plan   `query:"plan"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

func (qf QueryFilter) match(u User) bool {
	if qf.Role != "" && u.Role != qf.Role {
		return false
	}
	if qf.Gender != "" && u.Gender != qf.Gender {
		return false
	}
	if qf.Plan != "" && u.SubscriptionPlan != qf.Plan {
		return false
	}
	if qf.Search != "" &&
		!core.ContainsFold(u.FullName(), qf.Search) &&
		!core.ContainsFold(u.Email, qf.Search) &&
		!core.ContainsFold(u.Phone, qf.Search) {
		return false
	}
	return true
}

// LeaderboardEntry is the public view of a student ranked by xp.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	XP        int    `json:"xp"`
	Level     int    `json:"level"`
	Badges    int    `json:"badges"`
}

// GoogleProfile is the identity asserted by a verified Google ID token.
type GoogleProfile struct {
	Sub   string
	Email string
	Name  string
}
