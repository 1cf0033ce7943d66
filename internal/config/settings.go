package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"

	"github.com/vbonduro/cashreg/internal/domain"
)

// Env holds process-level settings read from the environment.
type Env struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	LogFile    string
}

func LoadEnv() *Env {
	return &Env{
		ConfigPath: getEnv("CASHREG_CONFIG", DefaultPath),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
		LogFile:    getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

type Shopify struct {
	APIKey     string
	Password   string
	StoreName  string
	APIVersion string
	Timeout    time.Duration
}

type App struct {
	TaxRate      decimal.Decimal
	IDImageDir   string
	DatabaseFile string
	MinAge       int
	ExportDir    string
}

// Settings is the typed view of a Store the application is wired from.
type Settings struct {
	Shopify Shopify
	App     App
}

// Settings decodes and validates the recognised keys. Every problem is
// reported at once; each matches domain.ErrConfig.
func (s *Store) Settings() (*Settings, error) {
	var problems *multierror.Error
	check := func(err error) {
		if err != nil {
			problems = multierror.Append(problems, err)
		}
	}

	timeout, timeoutErr := s.Int("shopify.timeout_seconds", 30)
	check(timeoutErr)
	taxRate, err := s.Float("app.tax_rate", 0)
	check(err)
	minAge, err := s.Int("app.min_age", 21)
	check(err)

	set := &Settings{
		Shopify: Shopify{
			APIKey:     s.String("shopify.api_key", ""),
			Password:   s.String("shopify.password", ""),
			StoreName:  s.String("shopify.store_name", ""),
			APIVersion: s.String("shopify.api_version", "2023-07"),
			Timeout:    time.Duration(timeout) * time.Second,
		},
		App: App{
			TaxRate:      decimal.NewFromFloat(taxRate),
			IDImageDir:   s.String("app.id_image_dir", "id_images/"),
			DatabaseFile: s.String("app.database_file", "cash_register.db"),
			MinAge:       minAge,
			ExportDir:    s.String("app.export_dir", "."),
		},
	}

	if set.App.TaxRate.IsNegative() || set.App.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		check(fmt.Errorf("%w: app.tax_rate must be a fraction in [0, 1), got %s", domain.ErrConfig, set.App.TaxRate))
	}
	if set.App.MinAge < 0 {
		check(fmt.Errorf("%w: app.min_age must not be negative", domain.ErrConfig))
	}
	if set.App.DatabaseFile == "" {
		check(fmt.Errorf("%w: app.database_file is required", domain.ErrConfig))
	}
	if set.App.IDImageDir == "" {
		check(fmt.Errorf("%w: app.id_image_dir is required", domain.ErrConfig))
	}
	if timeout <= 0 && timeoutErr == nil {
		check(fmt.Errorf("%w: shopify.timeout_seconds must be positive", domain.ErrConfig))
	}

	if problems != nil {
		problems.ErrorFormat = joinProblems
		return nil, problems
	}
	return set, nil
}

func joinProblems(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
