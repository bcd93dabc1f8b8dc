package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          string
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		OpenAI    OpenAIConfig
		ImageHost ImageHostConfig
		Digest    DigestConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimit                 float64 // requests per second per IP on auth endpoints
		RateBurst                 int
	}

	DatabaseConfig struct {
		Engine        string // postgres | inmem
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string // empty: in-process cache
		Password string
		DB       int
		CacheTTL time.Duration
	}

	OpenAIConfig struct {
		APIKey    string // empty: offline suggestions
		Model     string
		BaseURL   string
		MaxTokens int
		Timeout   time.Duration
	}

	ImageHostConfig struct {
		Provider  string // local | imgbb
		APIKey    string
		UploadURL string
		MediaDir  string
		MediaURL  string
		MaxSize   int64
	}

	DigestConfig struct {
		Enabled  bool
		Schedule string // cron expression, UTC
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

func (conf *Config) DefaultFromAddress() string {
	return fmt.Sprintf("%s <%s>", conf.AppName, conf.DefaultFromEmail)
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Preschool")
	v.SetDefault("secretKey", "n3x!q9-kd0s$c+p2h=7fa&ul4t(z)w#8m(e5y^b1rgvj6o")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.rateLimit", 5.0)
	v.SetDefault("server.rateBurst", 10)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "preschool")
	v.SetDefault("database.user", "preschool")
	v.SetDefault("database.password", "preschool")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cacheTTL", 5*time.Minute)

	v.SetDefault("openai.apiKey", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.baseURL", "https://api.openai.com/v1")
	v.SetDefault("openai.maxTokens", 300)
	v.SetDefault("openai.timeout", 20*time.Second)

	v.SetDefault("imageHost.provider", "local")
	v.SetDefault("imageHost.apiKey", "")
	v.SetDefault("imageHost.uploadURL", "https://api.imgbb.com/1/upload")
	v.SetDefault("imageHost.mediaDir", "media")
	v.SetDefault("imageHost.mediaURL", "/media")
	v.SetDefault("imageHost.maxSize", 5<<20)

	v.SetDefault("digest.enabled", false)
	v.SetDefault("digest.schedule", "0 7 * * 1")
}

// NewConfig loads the app configuration from defaults, config/.env.<env> (if present) and env vars.
// A nested key like `database.host` is read from `<ENV>_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
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
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail:          v.GetString("defaultFromEmail"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			RateLimit:                 v.GetFloat64("server.rateLimit"),
			RateBurst:                 v.GetInt("server.rateBurst"),
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
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetDuration("redis.cacheTTL"),
		},
		OpenAI: OpenAIConfig{
			APIKey:    v.GetString("openai.apiKey"),
			Model:     v.GetString("openai.model"),
			BaseURL:   strings.TrimRight(v.GetString("openai.baseURL"), "/"),
			MaxTokens: v.GetInt("openai.maxTokens"),
			Timeout:   v.GetDuration("openai.timeout"),
		},
		ImageHost: ImageHostConfig{
			Provider:  v.GetString("imageHost.provider"),
			APIKey:    v.GetString("imageHost.apiKey"),
			UploadURL: v.GetString("imageHost.uploadURL"),
			MediaDir:  v.GetString("imageHost.mediaDir"),
			MediaURL:  strings.TrimRight(v.GetString("imageHost.mediaURL"), "/"),
			MaxSize:   v.GetInt64("imageHost.maxSize"),
		},
		Digest: DigestConfig{
			Enabled:  v.GetBool("digest.enabled"),
			Schedule: v.GetString("digest.schedule"),
		},
	}
}
