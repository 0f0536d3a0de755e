package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"doorprize/internal/models"
	"doorprize/internal/store"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	StoreType    string
	StoreDSN     string
	Title        string
	Countdown    int
	OperatorUser string
	OperatorPass string
	LogFile      string
	Verbose      bool
}

// AuthEnabled reports whether operator routes sit behind basic auth.
func (c Config) AuthEnabled() bool {
	return c.OperatorUser != "" && c.OperatorPass != ""
}

// Load parses command line flags, falling back to the environment and then to
// defaults. Variables from the env file (".env" unless -env says otherwise)
// are loaded first and never override ones already set.
func Load(args []string) (Config, error) {
	var cfg Config
	var envFile, verbose string

	fs := flag.NewFlagSet("doorprize", flag.ContinueOnError)
	fs.StringVar(&envFile, "env", ".env", "Env file to load")
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.StoreType, "t", "", "Store type (memory, file, sqlite or postgres)")
	fs.StringVar(&cfg.StoreDSN, "d", "", "Store location: data directory, sqlite file or postgres URL")
	fs.StringVar(&cfg.Title, "title", "", "Draw screen title")
	fs.IntVar(&cfg.Countdown, "countdown", 0, "Countdown seconds before a winner is drawn")
	fs.StringVar(&cfg.LogFile, "log", "", "Also write logs to this file")
	fs.StringVar(&verbose, "verbose", "", "Log to stdout (true or false)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
	}

	var err error
	if cfg.Port == 0 {
		if cfg.Port, err = intEnv("PORT", 8080); err != nil {
			return Config{}, err
		}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}

	if cfg.StoreType == "" {
		cfg.StoreType = getenv("STORE_TYPE", store.TypeFile)
	}
	switch cfg.StoreType {
	case store.TypeMemory, store.TypeFile, store.TypeSQLite, store.TypePostgres:
	default:
		return Config{}, fmt.Errorf("%w: %q", store.ErrUnknownType, cfg.StoreType)
	}

	if cfg.StoreDSN == "" {
		cfg.StoreDSN = os.Getenv("STORE_DSN")
	}
	if cfg.StoreDSN == "" {
		switch cfg.StoreType {
		case store.TypeFile:
			cfg.StoreDSN = "./data"
		case store.TypeSQLite:
			cfg.StoreDSN = "doorprize.db"
		case store.TypePostgres:
			return Config{}, errors.New("postgres store requires a DSN (use -d or STORE_DSN env)")
		}
	}

	if cfg.Title == "" {
		cfg.Title = getenv("DRAW_TITLE", models.DefaultTitle)
	}

	if cfg.Countdown == 0 {
		if cfg.Countdown, err = intEnv("DRAW_COUNTDOWN", 5); err != nil {
			return Config{}, err
		}
	}
	if cfg.Countdown < 1 {
		return Config{}, fmt.Errorf("invalid countdown %d", cfg.Countdown)
	}

	cfg.OperatorUser = os.Getenv("OPERATOR_USER")
	cfg.OperatorPass = os.Getenv("OPERATOR_PASS")

	if cfg.LogFile == "" {
		cfg.LogFile = os.Getenv("LOG_FILE")
	}

	if verbose == "" {
		verbose = getenv("VERBOSE", "true")
	}
	if cfg.Verbose, err = strconv.ParseBool(verbose); err != nil {
		return Config{}, fmt.Errorf("invalid VERBOSE value %q", verbose)
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", k)
	}
	return n, nil
}
