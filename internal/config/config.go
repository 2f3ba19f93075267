package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/toricodesthings/pdf-scale-finder/internal/layout"
)

type Config struct {
	// Pipeline
	LayoutBackend     string
	PageWorkers       int
	XTolerance        float64
	YTolerance        float64
	LineBucket        float64
	ContainTolerance  float64
	LeftContextGap    float64
	ScalePatternsFile string
	PopplerTimeout    time.Duration

	// Table detection
	TableClusterGap float64
	TableCellGap    float64
	TableCaptionGap float64
	TableMaxWords   int

	// Storage
	DatabaseURL string

	// Logging
	LogLevel  string
	LogFormat string

	// Server
	Port string

	// Secrets
	InternalSharedSecret string

	// Limits
	MaxJSONBodyBytes int64
	MaxPDFBytes      int64
	MaxURLLen        int
	MaxHeaderBytes   int

	// Concurrency
	MaxConcurrentRequests int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Request timeouts
	ExtractTimeout  time.Duration
	DownloadTimeout time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// health
	HealthDegradeRatio float64

	// Request defaults (used when request options omit values)
	DefaultTop int
}

// LoadDotEnv reads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load() Config {
	return Config{
		LayoutBackend:     envStr("LAYOUT_BACKEND", layout.BackendNative),
		PageWorkers:       envInt("PAGE_WORKERS", runtime.NumCPU()),
		XTolerance:        envFloat("X_TOLERANCE", 3),
		YTolerance:        envFloat("Y_TOLERANCE", 3),
		LineBucket:        envFloat("LINE_BUCKET", 10),
		ContainTolerance:  envFloat("CONTAIN_TOLERANCE", 0.5),
		LeftContextGap:    envFloat("LEFT_CONTEXT_GAP", 2),
		ScalePatternsFile: envStr("SCALE_PATTERNS_FILE", ""),
		PopplerTimeout:    envDur("POPPLER_TIMEOUT", 10*time.Second),

		TableClusterGap: envFloat("TABLE_CLUSTER_GAP", 24),
		TableCellGap:    envFloat("TABLE_CELL_GAP", 12),
		TableCaptionGap: envFloat("TABLE_CAPTION_GAP", 96),
		TableMaxWords:   envInt("TABLE_MAX_WORDS", 20000),

		DatabaseURL: envStr("DATABASE_URL", ""),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),

		Port: envStr("PORT", "8080"),

		InternalSharedSecret: envStr("INTERNAL_SHARED_SECRET", ""),

		MaxJSONBodyBytes: int64(envInt("MAX_JSON_BODY_BYTES", 64<<10)),
		MaxPDFBytes:      int64(envInt("MAX_PDF_BYTES", int(200<<20))),
		MaxURLLen:        envInt("MAX_URL_LEN", 2048),
		MaxHeaderBytes:   envInt("MAX_HEADER_BYTES", 1<<20),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 15)),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		ExtractTimeout:  envDur("EXTRACT_TIMEOUT", 160*time.Second),
		DownloadTimeout: envDur("DOWNLOAD_TIMEOUT", 25*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		DefaultTop: envInt("DEFAULT_TOP", 10),
	}
}

// Validate checks settings shared by every entry point.
func (c Config) Validate() error {
	if _, err := layout.NewOpener(c.LayoutBackend, c.PopplerTimeout); err != nil {
		return err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// ValidateServer adds the checks that only matter for the HTTP service.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(c.InternalSharedSecret)) < 32 {
		return fmt.Errorf("INTERNAL_SHARED_SECRET must be at least 32 characters")
	}
	return nil
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
