package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

// ErrConfiguration is wrapped by every startup configuration failure.
var ErrConfiguration = errors.New("configuration error")

// ConfigError lists every problem found by Validate.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, strings.Join(e.Problems, "; "))
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

const (
	SourceCloudinary = "cloudinary"
	SourceMinio      = "minio"
	SourceMySQL      = "mysql"
	SourcePostgres   = "postgres"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`

		// TrustProxyHeaders: only behind a proxy that rewrites X-Forwarded-For.
		TrustProxyHeaders bool `yaml:"trustProxyHeaders"`
	} `yaml:"server"`

	Auth struct {
		Username           string        `yaml:"username"`
		Password           string        `yaml:"password"`
		SessionSecret      string        `yaml:"sessionSecret"`
		SessionTTL         time.Duration `yaml:"sessionTTL"`
		LoginRatePerMinute int           `yaml:"loginRatePerMinute"`
	} `yaml:"auth"`

	Source struct {
		Type       string        `yaml:"type"`
		Folder     string        `yaml:"folder"`
		MaxResults int           `yaml:"maxResults"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"source"`

	Cloudinary struct {
		CloudName string `yaml:"cloudName"`
		APIKey    string `yaml:"apiKey"`
		APISecret string `yaml:"apiSecret"`
		BaseURL   string `yaml:"baseURL"`
	} `yaml:"cloudinary"`

	Minio struct {
		Endpoint      string        `yaml:"endpoint"`
		AccessKey     string        `yaml:"accessKey"`
		SecretKey     string        `yaml:"secretKey"`
		BucketName    string        `yaml:"bucketName"`
		Region        string        `yaml:"region"`
		UseSSL        bool          `yaml:"useSSL"`
		PublicBaseURL string        `yaml:"publicBaseURL"`
		PresignExpiry time.Duration `yaml:"presignExpiry"`
	} `yaml:"minio"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Cache struct {
		TTLSeconds int    `yaml:"ttlSeconds"`
		Backend    string `yaml:"backend"`
	} `yaml:"cache"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Categories map[string]string `yaml:"categories"`

	Gallery struct {
		PageSize int `yaml:"pageSize"`
		Columns  int `yaml:"columns"`
	} `yaml:"gallery"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
}

// Load baca file config.yaml, apply env overrides, defaults, lalu validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes YAML bytes. lookup resolves environment overrides.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrConfiguration, err)
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	if v, ok := lookup("CLOUDINARY_URL"); ok && v != "" {
		u, err := url.Parse(v)
		if err != nil || u.Scheme != "cloudinary" || u.User == nil {
			return &ConfigError{Problems: []string{"CLOUDINARY_URL must look like cloudinary://<key>:<secret>@<cloud>"}}
		}
		c.Cloudinary.CloudName = u.Host
		c.Cloudinary.APIKey = u.User.Username()
		c.Cloudinary.APISecret, _ = u.User.Password()
	}
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("CLOUDINARY_CLOUD_NAME", &c.Cloudinary.CloudName)
	set("CLOUDINARY_API_KEY", &c.Cloudinary.APIKey)
	set("CLOUDINARY_API_SECRET", &c.Cloudinary.APISecret)
	set("APP_USERNAME", &c.Auth.Username)
	set("APP_PASSWORD", &c.Auth.Password)
	set("SESSION_SECRET", &c.Auth.SessionSecret)
	set("DATABASE_PASSWORD", &c.Database.Password)
	set("REDIS_PASSWORD", &c.Redis.Password)
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Problems: []string{"PORT must be an integer"}}
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 12 * time.Hour
	}
	if c.Auth.LoginRatePerMinute == 0 {
		c.Auth.LoginRatePerMinute = 10
	}
	if c.Source.Type == "" {
		c.Source.Type = SourceCloudinary
	}
	if c.Source.Folder == "" {
		c.Source.Folder = "railway_wildlife"
	}
	if c.Source.MaxResults == 0 {
		c.Source.MaxResults = 300
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 10 * time.Second
	}
	if c.Cloudinary.BaseURL == "" {
		c.Cloudinary.BaseURL = "https://api.cloudinary.com"
	}
	if c.Minio.PresignExpiry == 0 {
		c.Minio.PresignExpiry = time.Hour
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 30
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "wildlife:"
	}
	if len(c.Categories) == 0 {
		c.Categories = detections.DefaultCategories()
	}
	if c.Gallery.PageSize == 0 {
		c.Gallery.PageSize = 30
	}
	if c.Gallery.Columns == 0 {
		c.Gallery.Columns = 3
	}
}

// Validate checks required secrets and value ranges.
func (c *Config) Validate() error {
	var problems []string
	req := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, name+" is required")
		}
	}

	req(c.Auth.Username, "auth.username")
	req(c.Auth.Password, "auth.password")

	switch c.Source.Type {
	case SourceCloudinary:
		req(c.Cloudinary.CloudName, "cloudinary.cloudName")
		req(c.Cloudinary.APIKey, "cloudinary.apiKey")
		req(c.Cloudinary.APISecret, "cloudinary.apiSecret")
	case SourceMinio:
		req(c.Minio.Endpoint, "minio.endpoint")
		req(c.Minio.BucketName, "minio.bucketName")
		req(c.Minio.AccessKey, "minio.accessKey")
		req(c.Minio.SecretKey, "minio.secretKey")
	case SourceMySQL, SourcePostgres:
		req(c.Database.Host, "database.host")
		req(c.Database.User, "database.user")
		req(c.Database.Name, "database.name")
	default:
		problems = append(problems, fmt.Sprintf("source.type %q is not one of cloudinary, minio, mysql, postgres", c.Source.Type))
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		req(c.Redis.Addr, "redis.addr")
	default:
		problems = append(problems, fmt.Sprintf("cache.backend %q is not one of memory, redis", c.Cache.Backend))
	}

	if c.Source.MaxResults < 0 {
		problems = append(problems, "source.maxResults must be positive")
	}
	if c.Cache.TTLSeconds < 0 {
		problems = append(problems, "cache.ttlSeconds must be positive")
	}
	if c.Gallery.PageSize < 0 || c.Gallery.Columns < 0 {
		problems = append(problems, "gallery.pageSize and gallery.columns must be positive")
	}
	for tag, label := range c.Categories {
		if tag != strings.ToLower(tag) || strings.ContainsAny(tag, "/_") || tag == "" {
			problems = append(problems, fmt.Sprintf("category tag %q must be a lowercase token without '/' or '_'", tag))
		}
		if strings.TrimSpace(label) == "" {
			problems = append(problems, fmt.Sprintf("category %q has an empty label", tag))
		}
		// category query values are comma separated
		if strings.Contains(label, ",") {
			problems = append(problems, fmt.Sprintf("category %q label %q must not contain ','", tag, label))
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// CacheTTL returns the record cache time-to-live.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// CategoryMap returns the configured tag→label mapping.
func (c *Config) CategoryMap() detections.CategoryMap {
	m := make(detections.CategoryMap, len(c.Categories))
	for k, v := range c.Categories {
		m[k] = v
	}
	return m
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	port := c.Database.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	port := c.Database.Port
	if port == 0 {
		port = 5432
	}
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	return u.String()
}
