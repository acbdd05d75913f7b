package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/notify-router/internal/ratelimit"
)

var _ = Describe("RedisStore", func() {
	var (
		mr    *miniredis.Miniredis
		rdb   *redis.Client
		store *ratelimit.RedisStore
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)

		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(rdb.Close)

		store = ratelimit.NewRedisStore(rdb, 3)
		ctx = context.Background()
	})

	It("should admit up to the daily maximum", func() {
		for i := 0; i < 3; i++ {
			ok, err := store.Reserve(ctx, "lead-1", "2026-03-01")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		}

		ok, err := store.Reserve(ctx, "lead-1", "2026-03-01")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		n, err := store.Count(ctx, "lead-1", "2026-03-01")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))
	})

	It("should set an expiry on the first reservation", func() {
		_, err := store.Reserve(ctx, "lead-1", "2026-03-01")
		Expect(err).NotTo(HaveOccurred())

		ttl := mr.TTL("quota:lead-1:2026-03-01")
		Expect(ttl).To(BeNumerically(">", 24*time.Hour))
		Expect(ttl).To(BeNumerically("<=", 48*time.Hour))
	})

	It("should drop counters once they expire", func() {
		store.Reserve(ctx, "lead-1", "2026-03-01")
		mr.FastForward(49 * time.Hour)

		n, err := store.Count(ctx, "lead-1", "2026-03-01")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))
	})

	It("should give a slot back on Release and floor at zero", func() {
		store.Reserve(ctx, "lead-1", "2026-03-01")
		Expect(store.Release(ctx, "lead-1", "2026-03-01")).To(Succeed())
		Expect(store.Release(ctx, "lead-1", "2026-03-01")).To(Succeed())

		n, _ := store.Count(ctx, "lead-1", "2026-03-01")
		Expect(n).To(Equal(0))
	})

	It("should keep days apart", func() {
		for i := 0; i < 3; i++ {
			store.Reserve(ctx, "lead-1", "2026-03-01")
		}
		ok, _ := store.Reserve(ctx, "lead-1", "2026-03-02")
		Expect(ok).To(BeTrue())
	})

	It("should never admit more than the maximum under concurrency", func() {
		var (
			wg      sync.WaitGroup
			granted atomic.Int32
		)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, err := store.Reserve(ctx, "lead-1", "2026-03-01"); err == nil && ok {
					granted.Add(1)
				}
			}()
		}
		wg.Wait()

		Expect(granted.Load()).To(Equal(int32(3)))
	})

	It("should surface connection errors", func() {
		mr.Close()

		_, err := store.Reserve(ctx, "lead-1", "2026-03-01")
		Expect(err).To(HaveOccurred())
	})

	It("should reject a nil client", func() {
		store = ratelimit.NewRedisStore(nil, 3)
		_, err := store.Reserve(ctx, "lead-1", "2026-03-01")
		Expect(err).To(MatchError(ContainSubstring("nil")))
	})
})
