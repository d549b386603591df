// Package config resolves run settings from flags, PRICETRACK_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultDBDir      = "db"
	DefaultFeedPath   = "data/products.json"
	DefaultImageDir   = "data/images"
	DefaultOutputPath = "daily_price_comparison.xlsx"
)

type Config struct {
	TestMode   bool
	Seed       int64
	DBPath     string
	FeedPath   string
	ImageDir   string
	OutputPath string
	LogMode    string
}

// StorePath is the sqlite file to use. Test mode gets its own database
// unless a path was given explicitly.
func (c Config) StorePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	if c.TestMode {
		return filepath.Join(DefaultDBDir, "test_products.db")
	}
	return filepath.Join(DefaultDBDir, "products.db")
}

// Load parses args (without the program name). Unrecognised config file
// keys are ignored.
func Load(name string, args []string, output string) (Config, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.BoolP("test", "t", false, "Enable test mode: separate database and simulated second snapshot")
	fs.String("config", "", "Optional config file (yaml, json or toml)")
	fs.Int64("seed", 0, "Seed for the test-mode price simulator (0 = time based)")
	fs.String("db", "", "SQLite database path (default db/products.db, db/test_products.db in test mode)")
	fs.String("feed", DefaultFeedPath, "Product feed used to seed an empty database")
	fs.String("images", DefaultImageDir, "Directory holding product images")
	fs.String("out", output, "Report output path")
	fs.String("log-mode", "dev", "Log format: dev or prod")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("PRICETRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return Config{
		TestMode:   v.GetBool("test"),
		Seed:       v.GetInt64("seed"),
		DBPath:     v.GetString("db"),
		FeedPath:   v.GetString("feed"),
		ImageDir:   v.GetString("images"),
		OutputPath: v.GetString("out"),
		LogMode:    v.GetString("log-mode"),
	}, nil
}
