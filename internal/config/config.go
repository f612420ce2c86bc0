package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	App      AppConfig      `yaml:"app"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Push     PushConfig     `yaml:"push"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Email    EmailConfig    `yaml:"email"`
	Internal InternalConfig `yaml:"internal"`
	Images   ImageConfig    `yaml:"images"`
	Reminder ReminderConfig `yaml:"reminder"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Mode     string `yaml:"mode"` // debug, release, test
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// AppConfig describes the public web application that links and redirects point to.
type AppConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig for the optional async notification queue and response cache
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	Driver            string `yaml:"driver"` // local, s3
	LocalDir          string `yaml:"local_dir"`
	PublicURL         string `yaml:"public_url"`
	Endpoint          string `yaml:"endpoint"`
	Region            string `yaml:"region"`
	AccessKeyID       string `yaml:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key"`
	EventImagesBucket string `yaml:"event_images_bucket"`
	GroupImagesBucket string `yaml:"group_images_bucket"`
	AvatarsBucket     string `yaml:"avatars_bucket"`
}

// PushConfig holds the VAPID key pair used to sign Web Push requests.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
	TTL             int    `yaml:"ttl"`
}

type OAuthConfig struct {
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	RedirectURL        string `yaml:"redirect_url"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

// InternalConfig guards server-to-server endpoints.
type InternalConfig struct {
	Token string `yaml:"token"`
}

type ImageConfig struct {
	MaxWidth       int `yaml:"max_width"`
	AvatarMaxWidth int `yaml:"avatar_max_width"`
	Quality        int `yaml:"quality"`
}

type ReminderConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Spec      string `yaml:"spec"`
	LeadHours int    `yaml:"lead_hours"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     "8080",
			Mode:     "debug",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "gatherly.db?_foreign_keys=on",
		},
		JWT: JWTConfig{
			Secret:     "gatherly-secret-key-change-in-production",
			ExpireHour: 24 * 7,
		},
		App: AppConfig{
			URL: "http://localhost:3000",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Storage: StorageConfig{
			Driver:            "local",
			LocalDir:          "uploads",
			PublicURL:         "http://localhost:8080/uploads",
			Region:            "us-east-1",
			EventImagesBucket: "event-images",
			GroupImagesBucket: "group-images",
			AvatarsBucket:     "avatars",
		},
		Push: PushConfig{
			Subscriber: "mailto:admin@example.com",
			TTL:        60 * 60 * 24,
		},
		Email: EmailConfig{
			Port: 587,
		},
		Images: ImageConfig{
			MaxWidth:       1920,
			AvatarMaxWidth: 400,
			Quality:        85,
		},
		Reminder: ReminderConfig{
			Enabled:   true,
			Spec:      "*/15 * * * *",
			LeadHours: 24,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Server.LogLevel = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if appURL := os.Getenv("APP_URL"); appURL != "" {
		c.App.URL = strings.TrimSuffix(appURL, "/")
	}
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		c.Storage.Endpoint = endpoint
	}
	if key := os.Getenv("S3_ACCESS_KEY_ID"); key != "" {
		c.Storage.AccessKeyID = key
	}
	if secret := os.Getenv("S3_SECRET_ACCESS_KEY"); secret != "" {
		c.Storage.SecretAccessKey = secret
	}
	if publicURL := os.Getenv("STORAGE_PUBLIC_URL"); publicURL != "" {
		c.Storage.PublicURL = strings.TrimSuffix(publicURL, "/")
	}
	if pub := os.Getenv("VAPID_PUBLIC_KEY"); pub != "" {
		c.Push.VAPIDPublicKey = pub
	}
	if priv := os.Getenv("VAPID_PRIVATE_KEY"); priv != "" {
		c.Push.VAPIDPrivateKey = priv
	}
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		c.OAuth.GoogleClientID = id
	}
	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		c.OAuth.GoogleClientSecret = secret
	}
	if token := os.Getenv("INTERNAL_API_TOKEN"); token != "" {
		c.Internal.Token = token
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

// PushEnabled reports whether a VAPID key pair is configured.
func (c *Config) PushEnabled() bool {
	return c.Push.VAPIDPublicKey != "" && c.Push.VAPIDPrivateKey != ""
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
