package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:          "8375",
		JWTSecret:     "a-long-enough-development-secret!!",
		PublicBaseURL: "http://localhost:8375",
		Env:           "development",
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	missingPort := validConfig()
	missingPort.Port = ""
	assert.Error(t, missingPort.Validate())

	missingSecret := validConfig()
	missingSecret.JWTSecret = ""
	assert.Error(t, missingSecret.Validate())

	missingBase := validConfig()
	missingBase.PublicBaseURL = ""
	assert.Error(t, missingBase.Validate())
}

func TestValidate_ProductionHardening(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "production"
	cfg.DBPassword = "a-strong-production-password"
	require.NoError(t, cfg.Validate())

	defaultSecret := validConfig()
	defaultSecret.Env = "production"
	defaultSecret.JWTSecret = "your-secret-key-change-in-production"
	assert.Error(t, defaultSecret.Validate())

	shortSecret := validConfig()
	shortSecret.Env = "production"
	shortSecret.JWTSecret = "too-short"
	assert.Error(t, shortSecret.Validate())

	weakDBPassword := validConfig()
	weakDBPassword.Env = "production"
	weakDBPassword.DBPassword = "password"
	assert.Error(t, weakDBPassword.Validate())
}

func TestImageHostAllowed(t *testing.T) {
	cfg := &Config{AllowedImageHosts: "images.squarespace-cdn.com, kindly-horse-150.convex.cloud"}

	assert.True(t, cfg.ImageHostAllowed("images.squarespace-cdn.com"))
	assert.True(t, cfg.ImageHostAllowed("kindly-horse-150.convex.cloud"))
	assert.False(t, cfg.ImageHostAllowed("evil.example.com"))
	assert.False(t, cfg.ImageHostAllowed(""))

	empty := &Config{}
	assert.False(t, empty.ImageHostAllowed("images.squarespace-cdn.com"))
}
