// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port              string `mapstructure:"PORT"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	DBHost            string `mapstructure:"DB_HOST"`
	DBPort            string `mapstructure:"DB_PORT"`
	DBUser            string `mapstructure:"DB_USER"`
	DBPassword        string `mapstructure:"DB_PASSWORD"`
	DBName            string `mapstructure:"DB_NAME"`
	DBSSLMode         string `mapstructure:"DB_SSLMODE"`
	RedisURL          string `mapstructure:"REDIS_URL"`
	AllowedOrigins    string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags      string `mapstructure:"FEATURE_FLAGS"`
	Env               string `mapstructure:"APP_ENV"`
	PublicBaseURL     string `mapstructure:"PUBLIC_BASE_URL"`
	AllowedImageHosts string `mapstructure:"ALLOWED_IMAGE_HOSTS"`
	PlaceholderImage  string `mapstructure:"PLACEHOLDER_IMAGE_URL"`
	ViewsDir          string `mapstructure:"VIEWS_DIR"`
}

// DefaultPlaceholderImage is used when a post has no image and no override is configured.
const DefaultPlaceholderImage = "https://images.squarespace-cdn.com/content/v1/607f89e638219e13eee71b1e/1684821560422-SD5V37BAG28BURTLIXUQ/michael-sum-LEpfefQf4rU-unsplash.jpg?format=2500w"

// LoadConfig loads application configuration from file and environment variables.
// A base config.yml is read first; when APP_ENV names a non-development profile,
// config.<env>.yml is merged on top. The profiles intentionally differ only in
// remote hostnames (storage/CDN), one file per deployment environment.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config.
	// The base config file may legitimately not exist (env-only deployments).
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "inkwell")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8375")
	viper.SetDefault("ALLOWED_IMAGE_HOSTS", "images.squarespace-cdn.com,kindly-horse-150.convex.cloud")
	viper.SetDefault("PLACEHOLDER_IMAGE_URL", DefaultPlaceholderImage)
	viper.SetDefault("VIEWS_DIR", "./views")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.PublicBaseURL == "" {
		return errors.New("PUBLIC_BASE_URL is required")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
	} else {
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}

// ImageHostAllowed reports whether a remote image hostname is on the configured allow-list.
func (c *Config) ImageHostAllowed(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	for _, allowed := range strings.Split(c.AllowedImageHosts, ",") {
		if host == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}
