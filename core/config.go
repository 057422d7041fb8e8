package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		JWTExpirationDelta time.Duration
		SessionTTL         time.Duration
		ShutdownTimeout    time.Duration
	}

	StorageConfig struct {
		Engine     string // bolt (default), memory, postgres
		Path       string
		QuotaBytes int64 // memory engine only, 0 = unlimited
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	EmailConfig struct {
		DefaultFrom    mail.Address
		SendgridApiKey string
	}

	ContentConfig struct {
		MaxUploadBytes int64
	}

	QuizConfig struct {
		ChoicePolicy       string
		TrueFalsePolicy    string
		OpenPolicy         string
		RecitationPolicy   string
		EnforceMaxAttempts bool
	}

	GamificationConfig struct {
		ForumPostXP   int
		CommentXP     int
		ContentViewXP int
		QuizPassXP    int
	}

	JobsConfig struct {
		Enabled            bool
		OutboxFlush        string
		PendingEnrollments string
		LiveReminders      string
		SubscriptionExpiry string
		SessionCleanup     string
		ReminderWindow     time.Duration
	}

	PrayerConfig struct {
		BaseURL  string
		City     string
		Country  string
		Method   int
		Timeout  time.Duration
		Defaults map[string]string
	}

	QuranConfig struct {
		BaseURL  string
		Editions []string
		Timeout  time.Duration
	}

	ChatConfig struct {
		BaseURL     string
		APIKey      string
		Model       string
		Temperature float64
		HistorySize int
		Timeout     time.Duration
	}

	CalendarConfig struct {
		ClientID     string
		ClientSecret string
		RefreshToken string
		TokenURL     string
		BaseURL      string
		CalendarID   string
		Timeout      time.Duration
	}

	Config struct {
		Env             string
		Build           string
		AppName         string
		Debug           bool
		TestMode        bool
		SecretKey       string
		WorkDir         string
		FrontendBaseURL string
		RollbarToken    string
		GoogleClientID  string

		Server       ServerConfig
		Storage      StorageConfig
		Database     DatabaseConfig
		Email        EmailConfig
		Content      ContentConfig
		Quiz         QuizConfig
		Gamification GamificationConfig
		Jobs         JobsConfig
		Prayer       PrayerConfig
		Quran        QuranConfig
		Chat         ChatConfig
		Calendar     CalendarConfig

		EnforceClassCapacity bool
		UniqueReferralCodes  bool
	}
)

func (dbc DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", dbc.Host, dbc.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Quran Senegal")
	v.SetDefault("secretKey", "x#9u!d2kq8(w$v4m+0e=5rj&c*l7y@a1b3n6tz)p%f_hsgo")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("google.clientID", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.sessionTTL", 7*24*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("storage.engine", "bolt")
	v.SetDefault("storage.path", filepath.Join("data", "academy.db"))
	v.SetDefault("storage.quotaBytes", int64(0))

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "academy")
	v.SetDefault("database.user", "academy")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("email.defaultFrom", "noreply@quransn.com")
	v.SetDefault("email.defaultFromName", "Quran Senegal")
	v.SetDefault("email.sendgridApiKey", "")

	v.SetDefault("content.maxUploadBytes", int64(5*1024*1024))

	v.SetDefault("quiz.choicePolicy", "always_credit")
	v.SetDefault("quiz.trueFalsePolicy", "always_credit")
	v.SetDefault("quiz.openPolicy", "on_presence")
	v.SetDefault("quiz.recitationPolicy", "on_presence")
	v.SetDefault("quiz.enforceMaxAttempts", false)

	v.SetDefault("gamification.forumPostXP", 10)
	v.SetDefault("gamification.commentXP", 5)
	v.SetDefault("gamification.contentViewXP", 20)
	v.SetDefault("gamification.quizPassXP", 50)

	v.SetDefault("enrollment.enforceCapacity", false)
	v.SetDefault("referral.unique", true)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.outboxFlush", "@every 30s")
	v.SetDefault("jobs.pendingEnrollments", "@every 1m")
	v.SetDefault("jobs.liveReminders", "@every 1m")
	v.SetDefault("jobs.subscriptionExpiry", "0 9 * * *")
	v.SetDefault("jobs.sessionCleanup", "@hourly")
	v.SetDefault("jobs.reminderWindow", 15*time.Minute)

	v.SetDefault("prayer.baseURL", "https://api.aladhan.com/v1")
	v.SetDefault("prayer.city", "Dakar")
	v.SetDefault("prayer.country", "Senegal")
	v.SetDefault("prayer.method", 2)
	v.SetDefault("prayer.timeout", 5*time.Second)

	v.SetDefault("quran.baseURL", "https://api.alquran.cloud/v1")
	v.SetDefault("quran.editions", "quran-uthmani,fr.hamidullah")
	v.SetDefault("quran.timeout", 5*time.Second)

	v.SetDefault("chat.baseURL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("chat.apiKey", "")
	v.SetDefault("chat.model", "gemini-2.5-flash")
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.historySize", 5)
	v.SetDefault("chat.timeout", 20*time.Second)

	v.SetDefault("calendar.clientID", "")
	v.SetDefault("calendar.clientSecret", "")
	v.SetDefault("calendar.refreshToken", "")
	v.SetDefault("calendar.tokenURL", "https://oauth2.googleapis.com/token")
	v.SetDefault("calendar.baseURL", "https://www.googleapis.com/calendar/v3")
	v.SetDefault("calendar.calendarID", "primary")
	v.SetDefault("calendar.timeout", 10*time.Second)
}

// defaultPrayerTimes are served whenever the prayer-times API cannot be reached.
var defaultPrayerTimes = map[string]string{
	"Fajr":    "05:45",
	"Sunrise": "07:00",
	"Dhuhr":   "13:30",
	"Asr":     "16:45",
	"Maghrib": "19:15",
	"Isha":    "20:30",
}

// NewConfig loads the configuration for the current ENV (DEV by default) from
// the environment and from `config/.env.<env>` when that file exists.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
		v.SetDefault("storage.engine", "memory")
		v.SetDefault("jobs.enabled", false)
	}

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return configFromViper(v, env, wd)
}

func configFromViper(v *viper.Viper, env, wd string) *Config {
	prayerDefaults := make(map[string]string, len(defaultPrayerTimes))
	for k, t := range defaultPrayerTimes {
		prayerDefaults[k] = t
	}

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		WorkDir:         wd,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		GoogleClientID:  v.GetString("google.clientID"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Address:            v.GetString("server.address"),
			DebugHost:          v.GetString("server.debugHost"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			SessionTTL:         v.GetDuration("server.sessionTTL"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
		},
		Storage: StorageConfig{
			Engine:     v.GetString("storage.engine"),
			Path:       v.GetString("storage.path"),
			QuotaBytes: v.GetInt64("storage.quotaBytes"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Email: EmailConfig{
			DefaultFrom:    mail.Address{Name: v.GetString("email.defaultFromName"), Address: v.GetString("email.defaultFrom")},
			SendgridApiKey: v.GetString("email.sendgridApiKey"),
		},
		Content: ContentConfig{
			MaxUploadBytes: v.GetInt64("content.maxUploadBytes"),
		},
		Quiz: QuizConfig{
			ChoicePolicy:       v.GetString("quiz.choicePolicy"),
			TrueFalsePolicy:    v.GetString("quiz.trueFalsePolicy"),
			OpenPolicy:         v.GetString("quiz.openPolicy"),
			RecitationPolicy:   v.GetString("quiz.recitationPolicy"),
			EnforceMaxAttempts: v.GetBool("quiz.enforceMaxAttempts"),
		},
		Gamification: GamificationConfig{
			ForumPostXP:   v.GetInt("gamification.forumPostXP"),
			CommentXP:     v.GetInt("gamification.commentXP"),
			ContentViewXP: v.GetInt("gamification.contentViewXP"),
			QuizPassXP:    v.GetInt("gamification.quizPassXP"),
		},
		Jobs: JobsConfig{
			Enabled:            v.GetBool("jobs.enabled"),
			OutboxFlush:        v.GetString("jobs.outboxFlush"),
			PendingEnrollments: v.GetString("jobs.pendingEnrollments"),
			LiveReminders:      v.GetString("jobs.liveReminders"),
			SubscriptionExpiry: v.GetString("jobs.subscriptionExpiry"),
			SessionCleanup:     v.GetString("jobs.sessionCleanup"),
			ReminderWindow:     v.GetDuration("jobs.reminderWindow"),
		},
		Prayer: PrayerConfig{
			BaseURL:  v.GetString("prayer.baseURL"),
			City:     v.GetString("prayer.city"),
			Country:  v.GetString("prayer.country"),
			Method:   v.GetInt("prayer.method"),
			Timeout:  v.GetDuration("prayer.timeout"),
			Defaults: prayerDefaults,
		},
		Quran: QuranConfig{
			BaseURL:  v.GetString("quran.baseURL"),
			Editions: strings.Split(v.GetString("quran.editions"), ","),
			Timeout:  v.GetDuration("quran.timeout"),
		},
		Chat: ChatConfig{
			BaseURL:     v.GetString("chat.baseURL"),
			APIKey:      v.GetString("chat.apiKey"),
			Model:       v.GetString("chat.model"),
			Temperature: v.GetFloat64("chat.temperature"),
			HistorySize: v.GetInt("chat.historySize"),
			Timeout:     v.GetDuration("chat.timeout"),
		},
		Calendar: CalendarConfig{
			ClientID:     v.GetString("calendar.clientID"),
			ClientSecret: v.GetString("calendar.clientSecret"),
			RefreshToken: v.GetString("calendar.refreshToken"),
			TokenURL:     v.GetString("calendar.tokenURL"),
			BaseURL:      v.GetString("calendar.baseURL"),
			CalendarID:   v.GetString("calendar.calendarID"),
			Timeout:      v.GetDuration("calendar.timeout"),
		},
		EnforceClassCapacity: v.GetBool("enrollment.enforceCapacity"),
		UniqueReferralCodes:  v.GetBool("referral.unique"),
	}
}

// NewTestConfig returns the configuration used by tests: no dotenv, no environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("testMode", true)
	v.Set("debug", false)
	v.Set("storage.engine", "memory")
	v.Set("jobs.enabled", false)
	return configFromViper(v, "TEST", "")
}
