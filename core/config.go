package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// insecureDevSecret is only acceptable in DEV; Validate rejects it elsewhere.
const insecureDevSecret = "k3y$-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy"

type (
	Config struct {
		Env      string // DEV (default), TEST, QA, PROD
		Debug    bool
		TestMode bool
		Build    string
		AppName  string
		WorkDir  string

		SecretKey        []byte
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		PasswordResetTimeoutDelta time.Duration

		Server    ServerConfig
		Session   SessionConfig
		RateLimit RateLimitConfig
		Rewards   RewardsConfig
		Database  DatabaseConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		// TrustProxy enables client IP extraction from the X-Forwarded-For
		// chain. Only set it when the server sits behind a trusted proxy.
		TrustProxy bool
	}

	SessionConfig struct {
		AdminCookieName   string
		StudentCookieName string
		AdminSecret       []byte
		StudentSecret     []byte
		IdleTimeout       time.Duration
		AbsoluteTimeout   time.Duration
	}

	RateLimitConfig struct {
		DefaultWindow      time.Duration
		DefaultMaxRequests int
		// the auth policy applies to login, password reset and application
		// submission endpoints.
		AuthWindow      time.Duration
		AuthMaxRequests int
	}

	RewardsConfig struct {
		SatsPerSession int
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}
)

func (dbc DatabaseConfig) Address() string {
	return dbc.Host + ":" + dbc.Port
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Darasa")
	v.SetDefault("secretKey", insecureDevSecret)
	v.SetDefault("frontendBaseUrl", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.trustProxy", false)

	v.SetDefault("session.adminCookieName", "darasa_admin_session")
	v.SetDefault("session.studentCookieName", "darasa_student_session")
	v.SetDefault("session.adminSecret", insecureDevSecret)
	v.SetDefault("session.studentSecret", insecureDevSecret)
	v.SetDefault("session.idleTimeout", 30*time.Minute)
	v.SetDefault("session.absoluteTimeout", 24*time.Hour)

	v.SetDefault("rateLimit.defaultWindow", 15*time.Minute)
	v.SetDefault("rateLimit.defaultMaxRequests", 300)
	v.SetDefault("rateLimit.authWindow", 15*time.Minute)
	v.SetDefault("rateLimit.authMaxRequests", 10)

	v.SetDefault("rewards.satsPerSession", 500)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "darasa")
	v.SetDefault("database.user", "darasa")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTls", true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load config/.env.<env> if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:      env,
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",
		Build:    v.GetString("build"),
		AppName:  v.GetString("appName"),
		WorkDir:  wd,

		SecretKey:        []byte(v.GetString("secretKey")),
		FrontendBaseURL:  v.GetString("frontendBaseUrl"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),

		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			TrustProxy:      v.GetBool("server.trustProxy"),
		},
		Session: SessionConfig{
			AdminCookieName:   v.GetString("session.adminCookieName"),
			StudentCookieName: v.GetString("session.studentCookieName"),
			AdminSecret:       []byte(v.GetString("session.adminSecret")),
			StudentSecret:     []byte(v.GetString("session.studentSecret")),
			IdleTimeout:       v.GetDuration("session.idleTimeout"),
			AbsoluteTimeout:   v.GetDuration("session.absoluteTimeout"),
		},
		RateLimit: RateLimitConfig{
			DefaultWindow:      v.GetDuration("rateLimit.defaultWindow"),
			DefaultMaxRequests: v.GetInt("rateLimit.defaultMaxRequests"),
			AuthWindow:         v.GetDuration("rateLimit.authWindow"),
			AuthMaxRequests:    v.GetInt("rateLimit.authMaxRequests"),
		},
		Rewards: RewardsConfig{
			SatsPerSession: v.GetInt("rewards.satsPerSession"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			DisableTLS:    v.GetBool("database.disableTls"),
		},
	}
}

// Validate checks for configuration that must not reach a deployed
// environment. A missing signing secret is a startup error, never a
// per-request one.
func (c *Config) Validate() error {
	if c.Debug || c.TestMode {
		return nil
	}
	for name, secret := range map[string][]byte{
		"secretKey":             c.SecretKey,
		"session.adminSecret":   c.Session.AdminSecret,
		"session.studentSecret": c.Session.StudentSecret,
	} {
		if len(secret) == 0 || string(secret) == insecureDevSecret {
			return errors.Errorf("config: %s must be set outside DEV", name)
		}
	}
	if c.SendgridApiKey == "" {
		return errors.New("config: sendgridApiKey must be set outside DEV")
	}
	return nil
}
