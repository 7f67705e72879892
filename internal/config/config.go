package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Simplici0/muebles/internal/costing"
	"github.com/Simplici0/muebles/internal/pricing"
)

const (
	defaultDBPath = "./dev.db"
	defaultPort   = "8080"
	envDev        = "dev"
)

// LogConfig selects the zap logger built at startup.
type LogConfig struct {
	Level  string
	Format string
}

// Config holds application configuration sourced from the environment, an
// optional .env file and an optional config.yaml.
type Config struct {
	Env           string
	DBPath        string
	Port          string
	Log           LogConfig
	RunMigrations bool
	SeedDemo      bool

	Times  costing.TimeStandards
	Policy costing.GeometryPolicy
	Solver pricing.SolveOptions
}

// IsDev reports whether the app runs in the development environment.
func (c Config) IsDev() bool { return c.Env == envDev }

// Load reads configuration for the current working directory.
func Load() (Config, error) {
	return load(".env", ".", "./configs")
}

func load(dotenvPath string, configDirs ...string) (Config, error) {
	// Best-effort: load local dev environment variables.
	// Production should use real env injection.
	if err := loadDotEnv(dotenvPath); err != nil {
		log.Printf("warning: read %s: %v", dotenvPath, err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range configDirs {
		v.AddConfigPath(dir)
	}
	v.AutomaticEnv()

	v.SetDefault("app_env", envDev)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("seed_demo", false)
	v.SetDefault("geometry_policy", "always")

	defaults := costing.DefaultTimeStandards()
	v.SetDefault("time_press_min_per_m2", defaults.PressMinPerM2.String())
	v.SetDefault("time_saw_min_per_m", defaults.SawMinPerM.String())
	v.SetDefault("time_labor_min_per_piece", defaults.LaborMinPerPiece.String())
	v.SetDefault("time_labor_min_per_m2", defaults.LaborMinPerM2.String())
	v.SetDefault("solver_min_percent", pricing.DefaultMinimum.String())
	v.SetDefault("solver_tolerance", pricing.DefaultTolerance.String())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Env:      strings.ToLower(v.GetString("app_env")),
		DBPath:   v.GetString("db_path"),
		Port:     v.GetString("port"),
		Log:      LogConfig{Level: v.GetString("log_level"), Format: v.GetString("log_format")},
		SeedDemo: v.GetBool("seed_demo"),
	}
	cfg.RunMigrations = cfg.IsDev()
	if v.IsSet("run_migrations") {
		cfg.RunMigrations = v.GetBool("run_migrations")
	}

	var err error
	if cfg.Policy, err = costing.ParseGeometryPolicy(v.GetString("geometry_policy")); err != nil {
		return Config{}, err
	}

	p := parser{v: v}
	cfg.Times = costing.TimeStandards{
		PressMinPerM2:    p.decimal("time_press_min_per_m2"),
		SawMinPerM:       p.decimal("time_saw_min_per_m"),
		LaborMinPerPiece: p.decimal("time_labor_min_per_piece"),
		LaborMinPerM2:    p.decimal("time_labor_min_per_m2"),
	}
	minimum, tolerance := p.decimal("solver_min_percent"), p.decimal("solver_tolerance")
	cfg.Solver = pricing.SolveOptions{Minimum: &minimum, Tolerance: &tolerance}
	if p.err != nil {
		return Config{}, p.err
	}

	return cfg, nil
}

// parser keeps the first decimal parse failure.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) decimal(key string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(p.v.GetString(key)))
	if err != nil && p.err == nil {
		p.err = costing.Invalid(strings.ToUpper(key), p.v.GetString(key), "must be a decimal number")
	}
	return d
}
