package banksync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"finsync/internal/domain/item"
	"finsync/internal/domain/merchant"
	"finsync/internal/domain/paymentmethod"
	"finsync/internal/domain/transaction"
	"finsync/internal/shared/logger"
)

var (
	syncTracer     = otel.Tracer("finsync/banksync")
	syncMeter      = otel.Meter("finsync/banksync")
	syncPages, _   = syncMeter.Int64Counter("sync.pages", metric.WithDescription("Feed pages fetched"))
	syncCreated, _ = syncMeter.Int64Counter("sync.transactions.created", metric.WithDescription("Transactions created by sync"))
	syncTotal, _   = syncMeter.Int64Counter("sync.total", metric.WithDescription("Item syncs by outcome"))
	syncLatency, _ = syncMeter.Float64Histogram("sync.duration", metric.WithDescription("Item sync duration in seconds"), metric.WithUnit("s"))
)

// Options bound a single item sync.
type Options struct {
	MaxPages    int
	MaxDuration time.Duration
	Lookback    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = 50
	}
	if o.Lookback <= 0 {
		o.Lookback = 30 * 24 * time.Hour
	}
	return o
}

// Dependencies wires a Service. Notifier and Archiver are optional.
type Dependencies struct {
	Items          *item.Service
	PaymentMethods *paymentmethod.Service
	Merchants      *merchant.Service
	Transactions   *transaction.Service
	Feed           Feed
	Locker         Locker
	Notifier       Notifier
	Archiver       Archiver
}

// Service pulls an item's transaction feed into the store. Every trigger
// (manual, webhook task, sweep) goes through SyncItem.
type Service struct {
	items     *item.Service
	methods   *paymentmethod.Service
	merchants *merchant.Service
	txns      *transaction.Service
	feed      Feed
	locker    Locker
	notifier  Notifier
	archiver  Archiver
	opts      Options
	now       func() time.Time
}

func NewService(deps Dependencies, opts Options) *Service {
	locker := deps.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Service{
		items:     deps.Items,
		methods:   deps.PaymentMethods,
		merchants: deps.Merchants,
		txns:      deps.Transactions,
		feed:      deps.Feed,
		locker:    locker,
		notifier:  deps.Notifier,
		archiver:  deps.Archiver,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// SyncItem pulls new transactions for one item. The per-item lock is held for
// the whole call, so concurrent triggers for the same item run one after the
// other and the checkpoint only moves forward from a finished sync.
func (s *Service) SyncItem(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	externalID := strings.TrimSpace(req.ExternalItemID)
	if externalID == "" {
		return nil, ErrItemIDRequired
	}

	ctx, span := syncTracer.Start(ctx, "banksync.sync_item",
		trace.WithAttributes(attribute.String("item.id", externalID)),
	)
	defer span.End()

	log := logger.FromContext(ctx).With().Str("item_id", externalID).Logger()
	ctx = logger.WithContext(ctx, log)

	unlock, err := s.locker.Lock(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire item lock: %w", err)
	}
	defer unlock()

	it, err := s.items.GetForUser(ctx, externalID, req.UserID)
	if err != nil {
		return nil, err
	}

	started := s.now()
	res, err := s.run(ctx, it, started)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		syncLatency.Record(ctx, elapsed)

		if errors.Is(err, context.Canceled) {
			// Caller went away or the process is stopping; the item is fine.
			log.Warn().Err(err).Msg("item sync cancelled")
		} else {
			s.fail(ctx, it, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	status := "success"
	if res.Incomplete {
		status = "incomplete"
	}
	syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	syncLatency.Record(ctx, elapsed)
	syncCreated.Add(ctx, int64(res.Synced))
	span.SetAttributes(
		attribute.Int("sync.synced", res.Synced),
		attribute.Int("sync.skipped", res.Skipped),
		attribute.Bool("sync.incomplete", res.Incomplete),
	)

	log.Info().
		Int("synced", res.Synced).
		Int("skipped", res.Skipped).
		Int("total", res.Total).
		Bool("incomplete", res.Incomplete).
		Msg("item sync finished")

	if res.Synced > 0 && s.notifier != nil {
		if err := s.notifier.NotifySyncComplete(ctx, it.UserID, it.ExternalID, it.InstitutionName, res.Synced); err != nil {
			log.Warn().Err(err).Msg("failed to send sync notification")
		}
	}

	return res, nil
}

// run performs the sync proper. Any error it returns is recorded on the item.
func (s *Service) run(ctx context.Context, it *item.Item, started time.Time) (*SyncResult, error) {
	methods, err := s.refreshPaymentMethods(ctx, it)
	if err != nil {
		return nil, err
	}

	byAccount := make(map[string]*paymentmethod.PaymentMethod, len(methods))
	for _, pm := range methods {
		if pm.ExternalAccountID != "" {
			byAccount[pm.ExternalAccountID] = pm
		}
	}
	if len(byAccount) == 0 {
		logger.FromContext(ctx).Info().Msg("no active accounts, nothing to sync")
		return &SyncResult{}, nil
	}

	records, incomplete, err := s.collect(ctx, it, byAccount, started)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Total: len(records), Incomplete: incomplete}
	for _, rt := range records {
		if err := s.store(ctx, it, rt, byAccount, res); err != nil {
			return nil, err
		}
	}

	// A capped run leaves the checkpoint alone so the next run covers the
	// same window.
	if incomplete {
		return res, nil
	}

	if err := s.items.MarkSynced(ctx, it.ExternalID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to mark item synced: %w", err)
	}
	return res, nil
}

// refreshPaymentMethods upserts the item's accounts and returns the active
// payment methods.
func (s *Service) refreshPaymentMethods(ctx context.Context, it *item.Item) ([]*paymentmethod.PaymentMethod, error) {
	accounts, err := s.feed.GetAccounts(ctx, it.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	if err := upsertAccounts(ctx, s.methods, it, accounts, false); err != nil {
		return nil, err
	}

	methods, err := s.methods.ListActiveByItemID(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	return methods, nil
}

func upsertAccounts(ctx context.Context, methods *paymentmethod.Service, it *item.Item, accounts []Account, reactivate bool) error {
	for _, a := range accounts {
		_, err := methods.Upsert(ctx, paymentmethod.UpsertParams{
			ExternalAccountID: a.ExternalID,
			ItemID:            it.ID,
			UserID:            it.UserID,
			Name:              a.Name,
			Type:              a.Type,
			Subtype:           a.Subtype,
			Mask:              a.Mask,
			OfficialName:      a.OfficialName,
			InstitutionName:   it.InstitutionName,
			Reactivate:        reactivate,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert payment method %s: %w", a.ExternalID, err)
		}
	}
	return nil
}

// collect pages through the feed and keeps the records of known accounts.
// It reports incomplete when a cap stopped it while pages remained.
func (s *Service) collect(ctx context.Context, it *item.Item, byAccount map[string]*paymentmethod.PaymentMethod, started time.Time) ([]RawTransaction, bool, error) {
	log := logger.FromContext(ctx)

	end := started.UTC()
	start := end.Add(-s.opts.Lookback)
	if it.LastSyncedAt != nil {
		start = it.LastSyncedAt.UTC()
	}

	var deadline time.Time
	if s.opts.MaxDuration > 0 {
		deadline = started.Add(s.opts.MaxDuration)
	}

	var (
		records []RawTransaction
		cursor  string
	)
	for page := 1; ; page++ {
		if page > s.opts.MaxPages || (!deadline.IsZero() && s.now().After(deadline)) {
			log.Warn().Int("pages", page-1).Msg("sync cap reached, result incomplete")
			return records, true, nil
		}

		p, err := s.feed.FetchPage(ctx, PageRequest{
			AccessToken: it.AccessToken,
			StartDate:   start,
			EndDate:     end,
			Cursor:      cursor,
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to fetch transactions page %d: %w", page, err)
		}
		syncPages.Add(ctx, 1)
		s.archive(ctx, it.ExternalID, page, p.Raw)

		for _, rt := range p.Transactions {
			if _, ok := byAccount[rt.AccountID]; ok {
				records = append(records, rt)
			}
		}

		if !p.HasMore || p.NextCursor == "" {
			return records, false, nil
		}
		cursor = p.NextCursor
	}
}

// store persists one record, counting it as synced or skipped.
func (s *Service) store(ctx context.Context, it *item.Item, rt RawTransaction, byAccount map[string]*paymentmethod.PaymentMethod, res *SyncResult) error {
	exists, err := s.txns.ExistsByExternalID(ctx, rt.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to check transaction %s: %w", rt.ExternalID, err)
	}
	if exists {
		res.Skipped++
		return nil
	}

	pm, ok := byAccount[rt.AccountID]
	if !ok {
		return nil
	}

	posted := rt.Date
	_, err = s.txns.Create(ctx, transaction.CreateParams{
		ExternalID:       rt.ExternalID,
		UserID:           it.UserID,
		PaymentMethodID:  pm.ID,
		MerchantID:       s.resolveMerchant(ctx, rt),
		Source:           transaction.SourcePlaid,
		Amount:           rt.Amount,
		Currency:         rt.Currency,
		Date:             rt.Date,
		AuthorizedDate:   rt.AuthorizedDate,
		PostedDate:       &posted,
		MerchantName:     rt.DisplayName(),
		Category:         rt.PrimaryCategory(),
		CategoryDetailed: strings.Join(rt.Category, ", "),
		Location:         rt.Location,
	})
	if errors.Is(err, transaction.ErrDuplicateExternalID) {
		// Another sync stored it between the check and the insert.
		res.Skipped++
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store transaction %s: %w", rt.ExternalID, err)
	}

	res.Synced++
	return nil
}

// resolveMerchant links a record to a merchant. Records with a merchant name
// find or create it; records with only a description link to an existing
// merchant of that name. Lookup failures leave the record unlinked.
func (s *Service) resolveMerchant(ctx context.Context, rt RawTransaction) string {
	var (
		m   *merchant.Merchant
		err error
	)
	if rt.MerchantName != "" {
		m, err = s.merchants.FindOrCreate(ctx, rt.MerchantName, rt.PrimaryCategory())
	} else {
		m, err = s.merchants.Lookup(ctx, rt.Name)
	}
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("transaction_id", rt.ExternalID).Msg("merchant lookup failed")
		return ""
	}
	if m == nil {
		return ""
	}
	return m.ID
}

func (s *Service) archive(ctx context.Context, itemID string, page int, raw []byte) {
	if s.archiver == nil || len(raw) == 0 {
		return
	}
	if err := s.archiver.ArchivePage(ctx, itemID, page, raw); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Int("page", page).Msg("failed to archive feed page")
	}
}

// fail records err on the item and tells the user. The checkpoint is left as
// it was.
func (s *Service) fail(ctx context.Context, it *item.Item, err error) {
	log := logger.FromContext(ctx)
	ctx = context.WithoutCancel(ctx)

	syncErr := item.SyncError{Message: err.Error(), Code: ErrorCode(err)}
	log.Error().Err(err).Str("code", syncErr.Code).Msg("item sync failed")

	if rerr := s.items.RecordError(ctx, it.ExternalID, syncErr); rerr != nil {
		log.Error().Err(rerr).Msg("failed to record sync error on item")
	}

	if s.notifier != nil {
		if nerr := s.notifier.NotifyNeedsAttention(ctx, it.UserID, it.ExternalID, it.InstitutionName); nerr != nil {
			log.Warn().Err(nerr).Msg("failed to send needs-attention notification")
		}
	}
}
