// Package models defines domain models for Vibranic Central.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// App represents a registered application that reports telemetry.
type App struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	APIKey      string    `json:"apiKey"`
	URL         string    `json:"url,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewApp creates a new App with a generated ID and API key.
func NewApp(name, url, description string) *App {
	now := time.Now()
	return &App{
		ID:          uuid.New().String(),
		Name:        name,
		APIKey:      NewAPIKey(),
		URL:         url,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewAPIKey generates an ingestion API key in the form "vib_" followed
// by 32 hex characters.
func NewAPIKey() string {
	return "vib_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
