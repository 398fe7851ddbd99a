package model

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"
)

// Config holds every tunable of the pipeline
type Config struct {
	Domain       string `yaml:"domain" mapstructure:"domain" validate:"required,wiki_domain"`
	MainCategory string `yaml:"main_category" mapstructure:"main_category" validate:"required,category_name"`
	DataDir      string `yaml:"data_dir" mapstructure:"data_dir" validate:"required"`

	Log   LogConfig   `yaml:"log" mapstructure:"log"`
	HTTP  HTTPConfig  `yaml:"http" mapstructure:"http"`
	Crawl CrawlConfig `yaml:"crawl" mapstructure:"crawl"`
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`
	Diff  DiffConfig  `yaml:"diff" mapstructure:"diff"`
	Parse ParseConfig `yaml:"parse" mapstructure:"parse"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error off"`
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// HTTPConfig configures the API client
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries" validate:"min=0,max=20"`
	RetryBase         time.Duration `yaml:"retry_base" mapstructure:"retry_base" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `yaml:"burst" mapstructure:"burst" validate:"min=1"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CrawlConfig configures the revision crawler
type CrawlConfig struct {
	YearsBack     int      `yaml:"years_back" mapstructure:"years_back" validate:"min=1,max=25"`
	Concurrency   int      `yaml:"concurrency" mapstructure:"concurrency" validate:"min=1,max=64"`
	PageWorkers   int      `yaml:"page_workers" mapstructure:"page_workers" validate:"min=1,max=64"`
	PageLimit     int      `yaml:"page_limit" mapstructure:"page_limit" validate:"min=1,max=500"`
	RevisionLimit int      `yaml:"revision_limit" mapstructure:"revision_limit" validate:"min=1,max=500"`
	SkipMinor     bool     `yaml:"skip_minor" mapstructure:"skip_minor"`
	Categories    []string `yaml:"categories,omitempty" mapstructure:"categories" validate:"omitempty,dive,category_name"`
}

// CacheConfig configures the revision content cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	Dir       string        `yaml:"dir,omitempty" mapstructure:"dir"`
}

// DiffConfig configures latexdiff invocation
type DiffConfig struct {
	Binary  string        `yaml:"binary" mapstructure:"binary" validate:"required"`
	Workers int           `yaml:"workers" mapstructure:"workers" validate:"min=1,max=256"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// ParseConfig configures the diff parsing batch
type ParseConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers" validate:"min=1,max=256"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Domain:       DomainWikipedia,
		MainCategory: "philosophy",
		DataDir:      "./data",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			UserAgent:         "wikiedits/0.3 (revision dataset builder)",
			MaxRetries:        5,
			RetryBase:         500 * time.Millisecond,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Crawl: CrawlConfig{
			YearsBack:     1,
			Concurrency:   4,
			PageWorkers:   1,
			PageLimit:     100,
			RevisionLimit: 20,
			SkipMinor:     true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Diff: DiffConfig{
			Binary:  "latexdiff",
			Workers: runtime.NumCPU(),
			Timeout: 2 * time.Minute,
		},
		Parse: ParseConfig{
			Workers: runtime.NumCPU(),
		},
	}
}

// Categories resolves the categories a crawl covers. An explicit list overrides the domain defaults.
func (c Config) Categories() ([]string, error) {
	if len(c.Crawl.Categories) > 0 {
		return c.Crawl.Categories, nil
	}
	cats, ok := CategoriesFor(c.Domain, c.MainCategory)
	if !ok {
		return nil, fmt.Errorf("invalid main category %q for domain %q", c.MainCategory, c.Domain)
	}
	return cats, nil
}

// RawRoot holds one directory per main category of the domain
func (c Config) RawRoot() string {
	return filepath.Join(c.DataDir, c.Domain, "raw")
}

// RawDir is where crawled revisions of the main category are appended
func (c Config) RawDir() string {
	return filepath.Join(c.RawRoot(), c.MainCategory)
}

// RawFile is the JSONL file of one category
func (c Config) RawFile(category string) string {
	return filepath.Join(c.RawDir(), fmt.Sprintf("raw_revisions_%s.json", category))
}

// MergedFile is the chain file produced by the merge stage
func (c Config) MergedFile() string {
	return filepath.Join(c.DataDir, c.Domain, "merged", fmt.Sprintf("raw_%s.json", c.Domain))
}

// DiffDir holds the latexdiff output of a domain
func (c Config) DiffDir() string {
	return filepath.Join(c.DataDir, "extracted_revisions", "latexdiff_"+c.Domain)
}

// OutputFile is the final edit-record array
func (c Config) OutputFile() string {
	return filepath.Join(c.DataDir, "extracted_revisions", c.Domain+"_revisions.json")
}

// CacheDir is the disk cache location
func (c Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return filepath.Join(c.DataDir, ".cache")
}
