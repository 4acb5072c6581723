package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/checkout"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/config"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/db"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/events"
	httpapi "github.com/zwaldoo1/Cerveza-artesanal/internal/http"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/localstore"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/remote"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/session"
)

// Guest carts in Redis expire after a month without writes.
const localCartTTL = 30 * 24 * time.Hour

func main() {
	logger := log.New(os.Stdout, "[cart-service] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// Postgres backs both the remote snapshots and the event sequences.
	var sqlDB *sql.DB
	if cfg.CartDBDSN != "" {
		if err := db.MigrateCartSchema(cfg.CartDBDSN, logger); err != nil {
			logger.Fatalf("run migrations: %v", err)
		}
		sqlDB, err = db.Open(ctx, cfg.CartDBDSN)
		if err != nil {
			logger.Fatalf("open db: %v", err)
		}
		closers = append(closers, func() { _ = sqlDB.Close() })
	}

	remoteStore, closeRemote, err := openRemote(ctx, cfg)
	if err != nil {
		logger.Fatalf("open remote store: %v", err)
	}
	closers = append(closers, closeRemote)

	localFactory, closeLocal, err := openLocal(ctx, cfg)
	if err != nil {
		logger.Fatalf("open local store: %v", err)
	}
	closers = append(closers, closeLocal)

	var publisher events.CartPublisher = events.Noop{}
	if cfg.RabbitMQURL != "" {
		conn, err := events.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatalf("connect rabbitmq: %v", err)
		}
		closers = append(closers, func() { _ = conn.Close() })

		var seq events.SequenceRepository
		if sqlDB != nil {
			seq = events.NewSequenceRepository(sqlDB)
		}
		pub, err := events.NewPublisher(conn, seq)
		if err != nil {
			logger.Fatalf("create publisher: %v", err)
		}
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				logger.Printf("publisher close error: %v", err)
			}
		})
		publisher = pub
	} else {
		logger.Printf("RABBITMQ_URL not set, cart events are not published")
	}

	forwarder := events.NewForwarder(publisher, logger, 0)
	forwarderDone := make(chan struct{})
	go func() {
		forwarder.Run(ctx)
		close(forwarderDone)
	}()

	sessions := session.NewManager(session.Options{
		Local:  localFactory,
		Remote: remoteStore,
		Listeners: []session.ListenerFunc{
			func(deviceID string, st *cart.Store) cart.Listener {
				return forwarder.Listener(deviceID, st.UserID)
			},
		},
		IdleTTL: cfg.SessionIdleTTL,
		Logger:  logger,
	})
	go sessions.Run(ctx, 0)

	mp, err := checkout.NewClient(checkout.Config{
		AccessToken:         cfg.MPAccessToken,
		BaseURL:             cfg.MPBaseURL,
		PublicBaseURL:       cfg.PublicBaseURL,
		StatementDescriptor: cfg.StatementDescriptor,
		CurrencyID:          cfg.CurrencyID,
	}, &http.Client{Timeout: cfg.UpstreamTimeout})
	if err != nil {
		logger.Fatalf("create checkout client: %v", err)
	}

	handler := httpapi.NewHandler(httpapi.HandlerOptions{
		Sessions:        sessions,
		Checkout:        mp,
		Publisher:       publisher,
		Logger:          logger,
		RemoteTimeout:   cfg.RemoteTimeout,
		UpstreamTimeout: cfg.UpstreamTimeout,
	})
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowOrigins, []byte(cfg.JWTSecret))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("cart-service listening on :%s (local=%s remote=%s)", cfg.Port, cfg.LocalStore, cfg.RemoteStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errCh:
		logger.Printf("server error: %v", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown error: %v", err)
	}
	<-forwarderDone
}

func openRemote(ctx context.Context, cfg config.Config) (cart.RemoteStore, func(), error) {
	switch cfg.RemoteStore {
	case config.RemoteStorePostgres:
		pool, err := db.NewPool(ctx, cfg.CartDBDSN)
		if err != nil {
			return nil, nil, err
		}
		return remote.NewPostgres(pool), pool.Close, nil
	case config.RemoteStoreFirestore:
		client, err := remote.NewFirestoreClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredFile)
		if err != nil {
			return nil, nil, err
		}
		return remote.NewFirestore(client, cfg.FirestoreCollection), func() { _ = client.Close() }, nil
	case config.RemoteStoreNone:
		return nil, func() {}, nil
	default:
		return remote.NewMemory(), func() {}, nil
	}
}

func openLocal(ctx context.Context, cfg config.Config) (localstore.Factory, func(), error) {
	switch cfg.LocalStore {
	case config.LocalStoreRedis:
		client, err := localstore.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return localstore.RedisFactory(client, 0, localCartTTL), func() { _ = client.Close() }, nil
	case config.LocalStoreMemory:
		return localstore.MemoryFactory(), func() {}, nil
	default:
		if err := os.MkdirAll(cfg.LocalStoreDir, 0o755); err != nil {
			return nil, nil, err
		}
		return localstore.FileFactory(cfg.LocalStoreDir), func() {}, nil
	}
}
