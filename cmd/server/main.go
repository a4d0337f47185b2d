// Command server wires high-level dependencies and keeps the server
// lifecycle small. Business logic lives in the internal service packages.
//
// Stores default to in-memory; setting VOUCH_POSTGRES_URL, VOUCH_REDIS_URL,
// or VOUCH_KAFKA_BROKERS swaps in the real infrastructure piecewise, so a
// bare `go run ./cmd/server` serves the sandbox vendors end to end.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vouch/internal/audit"
	"vouch/internal/decision"
	decisionhandler "vouch/internal/decision/handler"
	decisionmetrics "vouch/internal/decision/metrics"
	"vouch/internal/docverify"
	"vouch/internal/docverify/credcache"
	docverifyhandler "vouch/internal/docverify/handler"
	docverifymetrics "vouch/internal/docverify/metrics"
	"vouch/internal/eligibility"
	httpapi "vouch/internal/http"
	"vouch/internal/intent"
	"vouch/internal/ledger"
	"vouch/internal/ledger/seal"
	"vouch/internal/platform/config"
	"vouch/internal/platform/httpserver"
	"vouch/internal/platform/kafka"
	"vouch/internal/platform/logger"
	platformredis "vouch/internal/platform/redis"
	"vouch/internal/rules"
	"vouch/internal/vault"
	"vouch/internal/vendors"
	"vouch/internal/vendors/kitesignal"
	"vouch/internal/vendors/lumen"
	"vouch/internal/vendors/sentriwatch"
	"vouch/internal/vendors/trustlane"
	"vouch/internal/vendors/veriscan"
	"vouch/internal/waterfall"
	waterfallmetrics "vouch/internal/waterfall/metrics"
	id "vouch/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sealKey, err := cfg.SealKey()
	if err != nil {
		fatal(log, "seal key", err)
	}
	sealer, err := seal.New(sealKey)
	if err != nil {
		fatal(log, "build sealer", err)
	}

	// Stores: postgres when configured, in-memory otherwise.
	var (
		intentStore    intent.Store    = intent.NewMemoryStore()
		ledgerStore    ledger.Store    = ledger.NewMemoryStore()
		waterfallStore waterfall.Store = waterfall.NewMemoryStore()
		sessionStore   docverify.Store = docverify.NewMemoryStore()
		outcomeStore   decision.Store  = decision.NewMemoryStore()
		ruleStore      rules.Store     = rules.NewMemoryStore()
		auditStore     audit.Store     = audit.NewMemoryStore()
		outbox         *audit.OutboxStore
	)
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			fatal(log, "connect postgres", err)
		}
		defer pool.Close()
		intentStore = intent.NewPostgresStore(pool)
		ledgerStore = ledger.NewPostgresStore(pool)
		waterfallStore = waterfall.NewPostgresStore(pool)
		sessionStore = docverify.NewPostgresStore(pool)
		outcomeStore = decision.NewPostgresStore(pool)
		ruleStore = rules.NewPostgresStore(pool)

		// The audit outbox rides database/sql; same database, own pool.
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			fatal(log, "open audit database", err)
		}
		defer db.Close()
		outbox = audit.NewOutboxStore(db)
		auditStore = outbox
	}

	// Credential cache: redis when configured.
	var creds credcache.Cache = credcache.NewMemoryCache()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		fatal(log, "connect redis", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		creds = credcache.NewRedisCache(redisClient.Client)
	}

	// Vendor adapters run against their sandbox transports; swapping in the
	// live wire transports is deployment configuration, not code.
	registry := vendors.NewRegistry(
		trustlane.NewAdapter(trustlane.SandboxTransport{}, cfg.VendorTimeout),
		lumen.NewAdapter(lumen.SandboxTransport{Found: true}, cfg.VendorTimeout),
		sentriwatch.NewAdapter(sentriwatch.SandboxTransport{}, cfg.VendorTimeout),
		kitesignal.NewAdapter(kitesignal.SandboxTransport{Trusted: true}, cfg.VendorTimeout),
	)
	veriscanAdapter := veriscan.NewAdapter(&veriscan.SandboxTransport{
		SigningKey: sealKey,
	}, cfg.VendorTimeout)

	vaultStore := vault.NewMemoryVault()
	entitlements := vault.AllowAllEntitlements{}

	ledgerSvc, err := ledger.NewService(ledgerStore, sealer, log)
	if err != nil {
		fatal(log, "ledger service", err)
	}
	intents, err := intent.NewService(intentStore, log)
	if err != nil {
		fatal(log, "intent service", err)
	}
	eligibilitySvc, err := eligibility.NewService(vaultStore, entitlements, vaultStore, registry, log)
	if err != nil {
		fatal(log, "eligibility service", err)
	}
	orchestrator, err := waterfall.NewOrchestrator(
		waterfallStore, ledgerSvc, registry, vaultStore, waterfallmetrics.New(), log)
	if err != nil {
		fatal(log, "waterfall orchestrator", err)
	}
	machine, err := docverify.NewMachine(veriscanAdapter, ledgerSvc, creds, docverifymetrics.New(), log)
	if err != nil {
		fatal(log, "docverify machine", err)
	}
	documents, err := docverify.NewService(sessionStore, machine, intents, creds, log)
	if err != nil {
		fatal(log, "docverify service", err)
	}

	if err := seedRuleSets(ctx, ruleStore); err != nil {
		fatal(log, "seed rule sets", err)
	}

	publisher := audit.NewPublisher(auditStore)
	decisions, err := decision.NewService(
		intents, eligibilitySvc, orchestrator, outcomeStore, ruleStore,
		vaultStore, vaultStore, documents, publisher, decisionmetrics.New(), log)
	if err != nil {
		fatal(log, "decision service", err)
	}

	router := httpapi.NewRouter(
		decisionhandler.New(decisions, log),
		docverifyhandler.New(documents, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	// Audit relay: only meaningful with both the outbox and Kafka wired.
	if outbox != nil && len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.New(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			fatal(log, "kafka producer", err)
		}
		defer producer.Close()
		relay := audit.NewRelay(outbox, producer, log)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit relay stopped", "error", err)
			}
		}()
	}

	go func() {
		log.Info("starting vouch", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// seedRuleSets activates the shipped rule set versions when none is active
// yet. Re-activation of an existing version is a no-op.
func seedRuleSets(ctx context.Context, store rules.Store) error {
	for _, record := range []rules.Record{
		rules.RecordOf(rules.DefaultKYCRuleSet(id.NewRuleSetID(), 1)),
		rules.RecordOf(rules.DefaultDocumentRuleSet(id.NewRuleSetID(), 1)),
	} {
		if _, err := store.Active(ctx, record.Name); err == nil {
			continue
		}
		if err := store.Activate(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
