package cache_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/internal/cache"
)

var _ = Describe("Memory", func() {
	var (
		now time.Time
		m   *cache.Memory
		ctx = context.Background()
	)

	BeforeEach(func() {
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		m = cache.NewMemory().WithClock(func() time.Time { return now })
	})

	It("returns stored values until they expire", func() {
		Expect(m.Set(ctx, "k", []byte("v"), time.Minute)).To(Succeed())

		val, ok, err := m.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(string(val)).To(Equal("v"))

		now = now.Add(time.Minute)
		_, ok, _ = m.Get(ctx, "k")
		Expect(ok).To(BeFalse())
	})

	It("sweeps expired entries", func() {
		_ = m.Set(ctx, "short", []byte("a"), time.Second)
		_ = m.Set(ctx, "long", []byte("b"), time.Hour)

		now = now.Add(time.Minute)
		Expect(m.Sweep()).To(Equal(1))
		Expect(m.Len()).To(Equal(1))
	})

	It("isolates stored bytes from caller mutation", func() {
		buf := []byte("abc")
		_ = m.Set(ctx, "k", buf, time.Minute)
		buf[0] = 'z'

		val, _, _ := m.Get(ctx, "k")
		Expect(string(val)).To(Equal("abc"))
	})

	It("ignores non-positive TTLs and deletes keys", func() {
		_ = m.Set(ctx, "zero", []byte("x"), 0)
		_, ok, _ := m.Get(ctx, "zero")
		Expect(ok).To(BeFalse())

		_ = m.Set(ctx, "k", []byte("x"), time.Minute)
		Expect(m.Delete(ctx, "k")).To(Succeed())
		_, ok, _ = m.Get(ctx, "k")
		Expect(ok).To(BeFalse())
	})
})
