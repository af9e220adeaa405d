package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/domain/merchant"
	"finsync/internal/domain/notification"
	"finsync/internal/domain/paymentmethod"
	"finsync/internal/domain/synctask"
	"finsync/internal/domain/transaction"
	"finsync/internal/domain/webhook"
	"finsync/internal/infrastructure/crypto"
	"finsync/internal/infrastructure/firebase"
	"finsync/internal/infrastructure/gcs"
	"finsync/internal/infrastructure/plaid"
	"finsync/internal/infrastructure/postgres"
	httphandlers "finsync/internal/interfaces/http"
	"finsync/internal/shared/auth"
	"finsync/internal/shared/config"
	"finsync/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB       *postgres.DB
	Archiver *gcs.Archiver

	// Handlers
	TransactionHandler   *httphandlers.TransactionHandler
	SyncHandler          *httphandlers.SyncHandler
	WebhookHandler       *httphandlers.WebhookHandler
	ItemHandler          *httphandlers.ItemHandler
	PaymentMethodHandler *httphandlers.PaymentMethodHandler
	NotificationHandler  *httphandlers.NotificationHandler

	// Auth
	JWT *auth.JWT

	// Background sync
	Items *item.Service
	Sync  *banksync.Service
	Tasks *synctask.Service
}

// NewDependencies connects to the database, applies migrations and builds the
// services and handlers.
func NewDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.PoolOptions{})
	if err != nil {
		return nil, err
	}
	log.Info().Str("host", cfg.Database.Host).Msg("connected to database")

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if applied > 0 {
		log.Info().Int("applied", applied).Msg("database migrated")
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}

	texts := messages.Default()
	if cfg.MessagesFile != "" {
		if texts, err = messages.Load(cfg.MessagesFile); err != nil {
			db.Close()
			return nil, err
		}
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
		db.Close()
		return nil, fmt.Errorf("failed to create plaid client: %w", err)
	}

	// Repositories
	itemRepo := postgres.NewItemRepository(db, encryptor)
	paymentMethodRepo := postgres.NewPaymentMethodRepository(db)
	merchantRepo := postgres.NewMerchantRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	syncTaskRepo := postgres.NewSyncTaskRepository(db)
	deviceTokenRepo := postgres.NewDeviceTokenRepository(db)

	// Services
	items := item.NewService(itemRepo)
	paymentMethods := paymentmethod.NewService(paymentMethodRepo)
	merchants := merchant.NewService(merchantRepo)
	transactions := transaction.NewService(transactionRepo)
	tasks := synctask.NewService(syncTaskRepo, synctask.Options{MaxAttempts: cfg.Sync.TaskMaxAttempts})

	notifications := notification.NewService(deviceTokenRepo, nil, texts)
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, notifications.DeactivateToken)
		if err != nil {
			db.Close()
			return nil, err
		}
		notifications.SetMessenger(fcm)
		log.Info().Msg("push notifications enabled")
	} else {
		log.Warn().Msg("FIREBASE_CREDENTIALS_FILE not set, push notifications disabled")
	}

	deps := &Dependencies{
		DB:    db,
		JWT:   auth.NewJWT(cfg.JWT.Secret),
		Items: items,
		Tasks: tasks,
	}

	syncDeps := banksync.Dependencies{
		Items:          items,
		PaymentMethods: paymentMethods,
		Merchants:      merchants,
		Transactions:   transactions,
		Feed:           plaidClient,
		Locker:         postgres.NewAdvisoryLocker(db),
		Notifier:       notifications,
	}
	if cfg.Archive.Bucket != "" {
		archiver, err := gcs.NewArchiver(ctx, cfg.Archive.Bucket)
		if err != nil {
			db.Close()
			return nil, err
		}
		deps.Archiver = archiver
		syncDeps.Archiver = archiver
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("raw page archive enabled")
	}

	deps.Sync = banksync.NewService(syncDeps, banksync.Options{
		MaxPages:    cfg.Sync.MaxPages,
		MaxDuration: cfg.Sync.MaxDuration,
		Lookback:    cfg.Sync.DefaultLookback,
	})
	link := banksync.NewLinkService(items, paymentMethods, plaidClient, plaidClient, tasks)
	dispatcher := webhook.NewDispatcher(tasks, items, notifications)

	var verifier httphandlers.WebhookVerifier
	if cfg.Plaid.VerifyWebhooks {
		verifier = plaid.NewWebhookVerifier(plaidClient.WebhookKey)
		log.Info().Msg("webhook verification enabled")
	}

	deps.TransactionHandler = httphandlers.NewTransactionHandler(transactions)
	deps.SyncHandler = httphandlers.NewSyncHandler(deps.Sync)
	deps.WebhookHandler = httphandlers.NewWebhookHandler(dispatcher, verifier)
	deps.ItemHandler = httphandlers.NewItemHandler(link, items)
	deps.PaymentMethodHandler = httphandlers.NewPaymentMethodHandler(paymentMethods)
	deps.NotificationHandler = httphandlers.NewNotificationHandler(notifications)

	return deps, nil
}

// Close releases the database pool and the archive client.
func (d *Dependencies) Close() {
	if d.Archiver != nil {
		d.Archiver.Close()
	}
	d.DB.Close()
}
