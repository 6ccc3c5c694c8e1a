// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

//go:build integration

package store_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/noriauth/nori/internal/store"
)

func tableExists(ctx context.Context, pool *pgxpool.Pool, name string) bool {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
		name).Scan(&exists)
	Expect(err).NotTo(HaveOccurred())
	return exists
}

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx      context.Context
		migrator *store.Migrator
		pool     *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		migrator, err = store.NewMigrator(pg.URL)
		Expect(err).NotTo(HaveOccurred())
		pool, err = pgxpool.New(ctx, pg.URL)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		pool.Close()
		Expect(migrator.Close()).To(Succeed())
	})

	It("starts at version zero with everything pending", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		pending, err := migrator.Pending()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(Equal([]uint{1, 2}))
	})

	It("creates the auth tables on Up", func() {
		Expect(migrator.Up()).To(Succeed())

		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
		Expect(tableExists(ctx, pool, "users")).To(BeTrue())
		Expect(tableExists(ctx, pool, "sessions")).To(BeTrue())
	})

	It("treats a second Up as a no-op", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("steps back one migration", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		Expect(tableExists(ctx, pool, "sessions")).To(BeFalse())
		Expect(tableExists(ctx, pool, "users")).To(BeTrue())
	})

	It("drops everything on Down", func() {
		Expect(migrator.Down()).To(Succeed())
		Expect(tableExists(ctx, pool, "users")).To(BeFalse())

		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})

	It("leaves the schema migrated for later specs", func() {
		Expect(migrator.Up()).To(Succeed())
	})
})

var _ = Describe("Connect", func() {
	It("returns a pool that answers queries", func(ctx SpecContext) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		pool, err := store.Connect(ctx, store.PoolConfig{
			URL:             pg.URL,
			MaxConns:        3,
			ConnectAttempts: 3,
			ConnectBackoff:  10 * time.Millisecond,
		}, logger)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		Expect(pool.Config().MaxConns).To(Equal(int32(3)))
		var one int
		Expect(pool.QueryRow(ctx, "SELECT 1").Scan(&one)).To(Succeed())
		Expect(one).To(Equal(1))
	})
})
