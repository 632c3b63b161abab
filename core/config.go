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
		Address                     string
		Host                        string
		DebugHost                   string
		ShutdownTimeout             time.Duration
		JWTExpirationDelta          time.Duration
		StudentTokenExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	ComplaintConfig struct {
		OverdueAfter time.Duration
	}

	UploadConfig struct {
		MaxSize   int64
		ReportTTL time.Duration
	}

	Config struct {
		Env              string
		Build            string
		AppName          string
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Complaint ComplaintConfig
		Upload    UploadConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// DefaultFromEmail parses the configured sender address, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

// NewConfig reads the configuration from the environment (and an optional `config/.env.<env>` file).
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "MarkTrack")
	v.SetDefault("secretKey", "l9#f0b!7z@kq2^w&mr5+v8x$e3p(c)s1y4j6n_h=t")
	v.SetDefault("defaultFromEmail", "MarkTrack <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.studentTokenExpirationDelta", 2*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "marktrack")
	v.SetDefault("database.user", "marktrack")
	v.SetDefault("database.password", "marktrack")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("complaint.overdueAfter", 24*time.Hour)

	v.SetDefault("upload.maxSize", int64(10<<20))
	v.SetDefault("upload.reportTTL", 24*time.Hour)

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:                     v.GetString("server.address"),
			Host:                        v.GetString("server.host"),
			DebugHost:                   v.GetString("server.debugHost"),
			ShutdownTimeout:             v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:          v.GetDuration("server.jwtExpirationDelta"),
			StudentTokenExpirationDelta: v.GetDuration("server.studentTokenExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Complaint: ComplaintConfig{
			OverdueAfter: v.GetDuration("complaint.overdueAfter"),
		},
		Upload: UploadConfig{
			MaxSize:   v.GetInt64("upload.maxSize"),
			ReportTTL: v.GetDuration("upload.reportTTL"),
		},
	}
}

// NewTestConfig returns a Config suited for unit tests (in-memory storage, debug on).
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		AppName:          "MarkTrack",
		Debug:            true,
		TestMode:         true,
		SecretKey:        "secret",
		defaultFromEmail: "noreply@localhost",
		Server: ServerConfig{
			Address:                     ":0",
			Host:                        "localhost",
			ShutdownTimeout:             time.Second,
			JWTExpirationDelta:          10 * time.Minute,
			StudentTokenExpirationDelta: 10 * time.Minute,
		},
		Database:  DatabaseConfig{Engine: "memory"},
		Complaint: ComplaintConfig{OverdueAfter: 24 * time.Hour},
		Upload:    UploadConfig{MaxSize: 1 << 20, ReportTTL: time.Hour},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(env=%s, build=%s, db=%s)", c.AppName, c.Env, c.Build, c.Database.Engine)
}
