package config

import (
	"fmt"
	"os"
	"strconv"

	"kaigen/internal/logger"
	"kaigen/pkg/models"
)

type Config struct {
	// Portal Configuration
	PortalBaseURL    string
	PortalUsername   string
	PortalPassword   string
	MaxDownloadLinks int

	// Permit Oracle Configuration
	OracleProvider        string
	OpenAIAPIKey          string
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Google Sheets Configuration
	SpreadsheetID string
	SheetName     string

	// Google Drive Configuration
	InvoiceFolderID string
	PermitFolderID  string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		PortalBaseURL:         getEnv("KAIGEN_BASE_URL", "https://japan-kaigen.net"),
		PortalUsername:        getEnv("KAIGEN_USERNAME", ""),
		PortalPassword:        getEnv("KAIGEN_PASSWORD", ""),
		MaxDownloadLinks:      getEnvInt("MAX_DOWNLOAD_LINKS", 0),
		OracleProvider:        getEnv("PERMIT_ORACLE", "openai"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		SpreadsheetID:         getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SheetName:             getEnv("GOOGLE_SHEET_NAME", "仕訳"),
		InvoiceFolderID:       getEnv("GOOGLE_DRIVE_INVOICE_FOLDER_ID", ""),
		PermitFolderID:        getEnv("GOOGLE_DRIVE_IMPORT_PERMIT_FOLDER_ID", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OracleProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when PERMIT_ORACLE is openai")
		}
	case "documentai":
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when PERMIT_ORACLE is documentai")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required when PERMIT_ORACLE is documentai")
		}
	default:
		return fmt.Errorf("PERMIT_ORACLE must be openai or documentai, got %q", c.OracleProvider)
	}
	return nil
}

// FolderID returns the Drive base folder for a document type.
func (c *Config) FolderID(docType models.DocumentType) string {
	if docType == models.DocumentTypeInvoice {
		return c.InvoiceFolderID
	}
	return c.PermitFolderID
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
