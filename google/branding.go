// Package google provides Google API client initialization and configuration.
package google

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DefaultProductName is the fallback when no branding config is found
	DefaultProductName = "DigiCard"

	// brandingFileName is the name of the local branding config file
	brandingFileName = "branding.local.json"
)

// configBasePath is the base path for config files. Can be overridden in tests.
var configBasePath = "."

// brandingConfig holds the parsed branding configuration
type brandingConfig struct {
	ProductName      string `json:"product_name"`
	ProductNameShort string `json:"product_name_short"`
}

// Cached branding data
var (
	cachedProductName string
	brandingOnce      sync.Once
	brandingMu        sync.Mutex
)

// resetBrandingCache clears the cached branding data (for testing)
func resetBrandingCache() {
	brandingMu.Lock()
	defer brandingMu.Unlock()
	cachedProductName = ""
	brandingOnce = sync.Once{}
}

// GetProductName returns the product name from branding config, or
// DefaultProductName if not found. The value is cached after first load.
func GetProductName() string {
	brandingOnce.Do(func() {
		cachedProductName = loadProductName()
	})
	return cachedProductName
}

// loadProductName reads the product name from the branding config file.
// Returns DefaultProductName if the file doesn't exist or is invalid.
func loadProductName() string {
	configPath := filepath.Join(configBasePath, "config", brandingFileName)

	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path is from trusted config
	if err != nil {
		// File doesn't exist or can't be read - use default
		return DefaultProductName
	}

	var config brandingConfig
	if err := json.Unmarshal(data, &config); err != nil {
		// Invalid JSON - use default
		return DefaultProductName
	}

	if config.ProductName == "" {
		// Empty product name - use default
		return DefaultProductName
	}

	return config.ProductName
}

// FormatWorkbookTitle generates the per-tenant contact workbook title,
// e.g. "DigiCard_Contacts".
func FormatWorkbookTitle() string {
	return fmt.Sprintf("%s_Contacts", GetProductName())
}

// FormatSpreadsheetURL returns the edit URL for a Google Sheets spreadsheet.
func FormatSpreadsheetURL(spreadsheetID string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", spreadsheetID)
}
