// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package main is the entry point for the HerpAtlas records server.
//
// HerpAtlas exposes a REST API for wildlife observation records that live
// across two stores: a bespoke relational table of observation rows plus a
// generic content/taxonomy store holding the browsable entries, species
// and group taxa, county terms, and voucher attachments.
//
// Startup order:
//
//  1. Configuration: defaults, optional YAML file, HERPATLAS_* env vars
//     (Koanf v2, highest priority wins)
//  2. Logging: zerolog, JSON or console format
//  3. Database: one SQLite file carrying both stores
//  4. Content store: entry/term/meta/user tables plus type registry
//  5. Blob storage: fs, s3 or memory driver for voucher media
//  6. Allocator: named-lock max+1 id generation per namespace
//  7. HTTP server: chi router with JWT-guarded writes and /metrics
//
// Shutdown is graceful on SIGINT/SIGTERM: the listener stops, in-flight
// requests get the configured drain window, then the database closes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/herpatlas/herpatlas/internal/allocator"
	"github.com/herpatlas/herpatlas/internal/api"
	"github.com/herpatlas/herpatlas/internal/blob"
	"github.com/herpatlas/herpatlas/internal/config"
	"github.com/herpatlas/herpatlas/internal/content"
	"github.com/herpatlas/herpatlas/internal/database"
	"github.com/herpatlas/herpatlas/internal/logging"
	"github.com/herpatlas/herpatlas/internal/media"
	"github.com/herpatlas/herpatlas/internal/middleware"
	"github.com/herpatlas/herpatlas/internal/namedlock"
	"github.com/herpatlas/herpatlas/internal/record"
	"github.com/herpatlas/herpatlas/internal/resolve"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr).
		Str("db_path", cfg.Database.Path).
		Str("media_driver", cfg.Media.Driver).
		Msg("starting herpatlas")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()

	store, err := content.NewSQLiteStore(db.Conn())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize content store")
	}
	store.RegisterType(content.TypeRecord)
	store.RegisterType(content.TypeSpecies)
	store.RegisterType(content.TypeGroup)
	store.RegisterType(content.TypeAttachment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := blob.Open(ctx, &cfg.Media)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize media storage")
	}

	// Neither store's native id sequence is trusted; every id comes from
	// the allocator, one namespace per table.
	alloc := allocator.New(namedlock.New(), cfg.Allocator.LockWait)
	alloc.Register(record.NamespaceRecords, db.MaxRecordID)
	alloc.Register(media.NamespaceEntries, store.MaxEntryID)
	alloc.Register(media.NamespaceVouchers, db.MaxLegacyVoucherID)

	library := media.NewLibrary(store, blobs, db, alloc, cfg.Media.Subdirectory)
	resolver := resolve.New(store)
	writer := record.NewWriter(db, store, resolver, alloc, library,
		cfg.Auth.ReplacementAuthorID, cfg.Allocator.InsertRetries)
	reader := record.NewReader(db, library)

	jwtManager, err := middleware.NewJWTManager(&cfg.Auth)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize auth")
	}

	handlers := api.NewHandlers(writer, reader, store, db, cfg.Server.Debug)
	router := api.NewRouter(handlers, jwtManager, &cfg.Server)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	logging.Info().Msg("stopped")
}
