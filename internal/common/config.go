package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Pipeline PipelineConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Cache    CacheConfig
	Store    StoreConfig
}

// PipelineConfig holds orchestrator-related configuration
type PipelineConfig struct {
	WorkerCount    int
	QueueCapacity  int
	BlockOnFull    bool
	MaxRetries     int
	MemoryBudgetMB int
	Tolerance      float64
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	QuickTimeout  time.Duration
	StdTimeout    time.Duration
}

// LLMConfig holds language-model-related configuration
type LLMConfig struct {
	Provider    string // "gemini" | "openai"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	MaxTokens   int
}

// CacheConfig holds result-cache configuration
type CacheConfig struct {
	Capacity      int
	OCRTTL        time.Duration
	ExtractionTTL time.Duration
	VerdictTTL    time.Duration
}

// StoreConfig holds result handoff configuration
type StoreConfig struct {
	DBPath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			WorkerCount:    getEnvAsInt("WORKER_COUNT", 4),
			QueueCapacity:  getEnvAsInt("QUEUE_CAPACITY", 64),
			BlockOnFull:    getEnvAsBool("QUEUE_BLOCK_ON_FULL", false),
			MaxRetries:     getEnvAsInt("MAX_RETRIES", 2),
			MemoryBudgetMB: getEnvAsInt("MEMORY_BUDGET_MB", 256),
			Tolerance:      getEnvAsFloat64("ARITHMETIC_TOLERANCE", 0.01),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "pol+eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			QuickTimeout:  getEnvAsDuration("OCR_QUICK_TIMEOUT", 15*time.Second),
			StdTimeout:    getEnvAsDuration("OCR_STANDARD_TIMEOUT", 45*time.Second),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", "gemini"),
			Model:       getEnv("LLM_MODEL", "gemini-2.0-flash"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("EXTRACTION_TIMEOUT", 30*time.Second),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 2048),
		},
		Cache: CacheConfig{
			Capacity:      getEnvAsInt("CACHE_CAPACITY", 1024),
			OCRTTL:        getEnvAsDuration("CACHE_OCR_TTL", 24*time.Hour),
			ExtractionTTL: getEnvAsDuration("CACHE_EXTRACTION_TTL", 24*time.Hour),
			VerdictTTL:    getEnvAsDuration("CACHE_VERDICT_TTL", time.Hour),
		},
		Store: StoreConfig{
			DBPath: getEnv("RECEIPT_DB_PATH", "./receipts.db"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Pipeline.WorkerCount <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKER_COUNT must be positive", ErrInvalidInput)
	}
	if c.Pipeline.QueueCapacity <= 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_CAPACITY must be positive", ErrInvalidInput)
	}
	if c.Pipeline.MemoryBudgetMB <= 0 {
		return NewAppError("CONFIG_ERROR", "MEMORY_BUDGET_MB must be positive", ErrInvalidInput)
	}
	if c.Pipeline.Tolerance <= 0 {
		return NewAppError("CONFIG_ERROR", "ARITHMETIC_TOLERANCE must be positive", ErrInvalidInput)
	}
	return nil
}
