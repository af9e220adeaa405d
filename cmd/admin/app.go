package main

import (
	"context"
	"fmt"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/domain/merchant"
	"finsync/internal/domain/paymentmethod"
	"finsync/internal/domain/synctask"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/crypto"
	"finsync/internal/infrastructure/gcs"
	"finsync/internal/infrastructure/plaid"
	"finsync/internal/infrastructure/postgres"
)

// app is the subset of the API wiring the commands need. Push notifications
// are not sent from the CLI.
type app struct {
	db       *postgres.DB
	archiver *gcs.Archiver
	items    *item.Service
	sync     *banksync.Service
	tasks    *synctask.Service
}

func newApp(ctx context.Context) (*app, error) {
	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.PoolOptions{})
	if err != nil {
		return nil, err
	}
	a := &app{db: db}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		a.close()
		return nil, err
	}
	plaidClient, err := plaid.NewClient(plaid.Config{
		ClientID:          cfg.Plaid.ClientID,
		Secret:            cfg.Plaid.Secret,
		Environment:       cfg.Plaid.Environment,
		WebhookURL:        cfg.Plaid.WebhookURL,
		CountryCodes:      cfg.Plaid.CountryCodes,
		RequestsPerSecond: cfg.Plaid.RequestsPerSecond,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create plaid client: %w", err)
	}

	a.items = item.NewService(postgres.NewItemRepository(db, encryptor))
	a.tasks = synctask.NewService(postgres.NewSyncTaskRepository(db), synctask.Options{MaxAttempts: cfg.Sync.TaskMaxAttempts})

	deps := banksync.Dependencies{
		Items:          a.items,
		PaymentMethods: paymentmethod.NewService(postgres.NewPaymentMethodRepository(db)),
		Merchants:      merchant.NewService(postgres.NewMerchantRepository(db)),
		Transactions:   transaction.NewService(postgres.NewTransactionRepository(db)),
		Feed:           plaidClient,
		Locker:         postgres.NewAdvisoryLocker(db),
	}
	if cfg.Archive.Bucket != "" {
		if a.archiver, err = gcs.NewArchiver(ctx, cfg.Archive.Bucket); err != nil {
			a.close()
			return nil, err
		}
		deps.Archiver = a.archiver
	}

	a.sync = banksync.NewService(deps, banksync.Options{
		MaxPages:    cfg.Sync.MaxPages,
		MaxDuration: cfg.Sync.MaxDuration,
		Lookback:    cfg.Sync.DefaultLookback,
	})
	return a, nil
}

func (a *app) close() {
	if a.archiver != nil {
		a.archiver.Close()
	}
	a.db.Close()
}
