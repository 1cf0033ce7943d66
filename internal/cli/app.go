package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/config"
	"github.com/vbonduro/cashreg/internal/db"
	"github.com/vbonduro/cashreg/internal/imagestore/local"
	"github.com/vbonduro/cashreg/internal/logging"
	"github.com/vbonduro/cashreg/internal/payment"
	"github.com/vbonduro/cashreg/internal/payment/shopify"
	"github.com/vbonduro/cashreg/internal/service"
	"github.com/vbonduro/cashreg/internal/store"
)

// errFirstRun ends a command after a default configuration was written.
var errFirstRun = errors.New("default configuration written")

// app is the wired register for one command invocation.
type app struct {
	settings *config.Settings
	logger   *slog.Logger
	db       *sql.DB
	images   *local.Store

	inventory    *service.InventoryService
	customers    *service.CustomerService
	transactions *service.TransactionService
	checkout     *service.Checkout

	closers []func()
}

// withApp opens the register, runs fn and releases everything on every path.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(a *app) error) error {
	a, err := openApp(cmd, opts)
	if errors.Is(err, errFirstRun) {
		return nil
	}
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// openApp starts up in order: configuration, logging, image directory,
// database, services.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	created, err := ensureConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if created {
		fmt.Fprintf(cmd.OutOrStdout(),
			"No configuration found. A default one was written to %s.\nAdd your Shopify credentials there and run cashreg again.\n",
			opts.ConfigPath)
		return nil, errFirstRun
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	a := &app{settings: settings}
	logger, cleanup, err := logging.New(opts.LogLevel, opts.LogFormat, opts.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, cleanup)

	a.images, err = local.New(settings.App.IDImageDir)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize id image store: %w", err)
	}

	a.db, err = db.Open(settings.App.DatabaseFile)
	if err != nil {
		logger.Error("failed to open database", "path", settings.App.DatabaseFile, "error", err)
		a.close()
		return nil, err
	}
	database := a.db
	a.closers = append(a.closers, func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	})

	inventoryStore := store.NewInventoryStore(a.db)
	customerStore := store.NewCustomerStore(a.db)
	transactionStore := store.NewTransactionStore(a.db)

	a.inventory = service.NewInventoryService(inventoryStore, logger)
	a.customers = service.NewCustomerService(customerStore, logger)
	a.transactions = service.NewTransactionService(transactionStore, customerStore, logger)
	a.checkout = service.NewCheckout(a.inventory, a.customers, a.transactions,
		newGateway(opts, settings.Shopify, logger), settings.App.TaxRate, settings.App.MinAge, logger)

	logger.Debug("register ready", "config", opts.ConfigPath, "database", settings.App.DatabaseFile)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ensureConfig writes the default configuration when path does not exist and
// reports whether it did.
func ensureConfig(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := config.WriteDefault(path); err != nil {
		return false, err
	}
	return true, nil
}

func newGateway(opts *RootOptions, cfg config.Shopify, logger *slog.Logger) payment.Gateway {
	if opts.newGateway != nil {
		return opts.newGateway(cfg)
	}
	if cfg.StoreName == "" {
		logger.Warn("shopify.store_name is not set; card payments are disabled")
		return nil
	}
	return shopify.NewClient(cfg.StoreName, cfg.Password, cfg.APIVersion, cfg.Timeout)
}
