package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Build                     string
	Env                       string
	Debug                     bool
	TestMode                  bool
	AppName                   string
	SecretKey                 string
	WorkDir                   string
	FrontendBaseURL           string
	DefaultFromEmailName      string
	DefaultFromEmailAddress   string
	RollbarToken              string
	SendgridApiKey            string
	PasswordResetTimeoutDelta time.Duration
	EmailConfirmTimeoutDelta  time.Duration

	Server struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		MFATokenExpirationDelta   time.Duration
	}

	Database struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	Events struct {
		URL      string
		Exchange string
	}

	Storage struct {
		Endpoint      string
		AccessKey     string
		SecretKey     string
		Bucket        string
		UseSSL        bool
		PresignExpiry time.Duration
	}

	Redis struct {
		Address  string
		Password string
		DB       int
	}

	RateLimit struct {
		Requests int
		Window   time.Duration
	}
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromEmailName, Address: c.DefaultFromEmailAddress}
}

func (c *Config) setDefaults(v *viper.Viper) {
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Academy")
	v.SetDefault("secretKey", "k2#a8c9e(u^x0pa_lw@6y2z9=ycm!q+t3$p$vr0n5l)d*he7qf")
	v.SetDefault("workDir", "")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmailName", "Academy")
	v.SetDefault("defaultFromEmailAddress", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 24*time.Hour)
	v.SetDefault("emailConfirmTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.mfaTokenExpirationDelta", 5*time.Minute)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "academy")
	v.SetDefault("database.user", "academy")
	v.SetDefault("database.password", "academy")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 20)

	v.SetDefault("events.url", "")
	v.SetDefault("events.exchange", "academy.events")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accessKey", "")
	v.SetDefault("storage.secretKey", "")
	v.SetDefault("storage.bucket", "faq-documents")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.presignExpiry", 15*time.Minute)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rateLimit.requests", 10)
	v.SetDefault("rateLimit.window", time.Minute)
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` and the environment.
// Environment variables are prefixed with the upper-cased ENV, e.g. PROD_DATABASE_HOST.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	conf := new(Config)
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	conf.setDefaults(v)
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}

	workDir := findWorkDir()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
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

	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.Env = env
	if conf.WorkDir == "" {
		conf.WorkDir = workDir
	}
	if host, _, err := net.SplitHostPort(conf.Server.Address); err == nil && host != "" {
		conf.Server.Host = host
	}
	return conf
}

// findWorkDir walks up from the current directory until it finds the "assets" dir.
// go test runs inside the package directory, so the project root is not the cwd there.
func findWorkDir() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	for dir := wd; ; {
		if fi, err := os.Stat(filepath.Join(dir, "assets")); err == nil && fi.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return wd
		}
		dir = parent
	}
}
