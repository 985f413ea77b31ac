package session_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/session"
)

// storeContract runs against every Store implementation.
func storeContract(newStore func() session.Store) {
	var (
		store session.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
	})

	It("reports an unknown session as absent", func() {
		_, ok, err := store.GetContext(ctx, "nobody")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		_, ok, err = store.GetIntent(ctx, "nobody")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("rejects an empty or oversize session id", func() {
		err := store.PutContext(ctx, "", model.ConversationContext{})
		Expect(model.IsValidation(err)).To(BeTrue())

		_, err = store.PutIntent(ctx, strings.Repeat("s", 129), model.UserIntent{})
		Expect(model.IsValidation(err)).To(BeTrue())
	})

	It("overwrites the context on every write", func() {
		Expect(store.PutContext(ctx, "s1", model.ConversationContext{Topic: "billing", Stage: model.StageOpening})).To(Succeed())
		Expect(store.PutContext(ctx, "s1", model.ConversationContext{Topic: "refund", Stage: model.StageResolution})).To(Succeed())

		got, ok, err := store.GetContext(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got.Topic).To(Equal("refund"))
		Expect(got.Stage).To(Equal(model.StageResolution))
	})

	It("assigns increasing sequence numbers and keeps history in order", func() {
		first, err := store.PutIntent(ctx, "s2", model.UserIntent{IntentType: model.IntentAccountInquiry})
		Expect(err).NotTo(HaveOccurred())
		second, err := store.PutIntent(ctx, "s2", model.UserIntent{IntentType: model.IntentComplaint})
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Sequence).To(BeNumerically(">", first.Sequence))

		latest, ok, err := store.GetIntent(ctx, "s2")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(latest.IntentType).To(Equal(model.IntentComplaint))

		history, err := store.IntentHistory(ctx, "s2")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(2))
		Expect(history[0].Sequence).To(Equal(first.Sequence))
		Expect(history[1].Sequence).To(Equal(second.Sequence))
	})

	It("returns the highest sequence as latest under concurrent writers", func() {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := store.PutIntent(ctx, "s3", model.UserIntent{SubIntent: fmt.Sprintf("w%d", i)})
				Expect(err).NotTo(HaveOccurred())
			}(i)
		}
		wg.Wait()

		latest, ok, err := store.GetIntent(ctx, "s3")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(latest.Sequence).To(BeEquivalentTo(10))
	})

	It("forgets everything on End", func() {
		Expect(store.PutContext(ctx, "s4", model.ConversationContext{Topic: "billing"})).To(Succeed())
		_, err := store.PutIntent(ctx, "s4", model.UserIntent{IntentType: model.IntentFeedback})
		Expect(err).NotTo(HaveOccurred())

		Expect(store.End(ctx, "s4")).To(Succeed())

		_, ok, err := store.GetContext(ctx, "s4")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		history, err := store.IntentHistory(ctx, "s4")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(BeEmpty())

		again, err := store.PutIntent(ctx, "s4", model.UserIntent{})
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Sequence).To(BeEquivalentTo(1))
	})
}

var _ = Describe("MemoryStore", func() {
	Describe("contract", func() {
		storeContract(func() session.Store { return session.NewMemoryStore(time.Minute, 5) })
	})

	var (
		now   time.Time
		store *session.MemoryStore
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
		store = session.NewMemoryStore(10*time.Minute, 3).WithClock(func() time.Time { return now })
	})

	It("expires sessions after the ttl", func() {
		Expect(store.PutContext(ctx, "s", model.ConversationContext{Topic: "billing"})).To(Succeed())

		now = now.Add(9 * time.Minute)
		_, ok, _ := store.GetContext(ctx, "s")
		Expect(ok).To(BeTrue())

		now = now.Add(time.Minute)
		_, ok, _ = store.GetContext(ctx, "s")
		Expect(ok).To(BeFalse())
	})

	It("refreshes the ttl on write", func() {
		Expect(store.PutContext(ctx, "s", model.ConversationContext{})).To(Succeed())
		now = now.Add(8 * time.Minute)
		_, err := store.PutIntent(ctx, "s", model.UserIntent{})
		Expect(err).NotTo(HaveOccurred())

		now = now.Add(8 * time.Minute)
		_, ok, _ := store.GetContext(ctx, "s")
		Expect(ok).To(BeTrue())
	})

	It("starts an expired session over on write", func() {
		_, err := store.PutIntent(ctx, "s", model.UserIntent{})
		Expect(err).NotTo(HaveOccurred())
		now = now.Add(time.Hour)

		fresh, err := store.PutIntent(ctx, "s", model.UserIntent{})
		Expect(err).NotTo(HaveOccurred())
		Expect(fresh.Sequence).To(BeEquivalentTo(1))
	})

	It("keeps only the most recent intents", func() {
		for i := 0; i < 5; i++ {
			_, err := store.PutIntent(ctx, "s", model.UserIntent{})
			Expect(err).NotTo(HaveOccurred())
		}
		history, err := store.IntentHistory(ctx, "s")
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(3))
		Expect(history[0].Sequence).To(BeEquivalentTo(3))
		Expect(history[2].Sequence).To(BeEquivalentTo(5))
	})

	It("does not share slices with callers", func() {
		points := []string{"refund"}
		Expect(store.PutContext(ctx, "s", model.ConversationContext{KeyPoints: points})).To(Succeed())
		points[0] = "mutated"

		got, _, _ := store.GetContext(ctx, "s")
		Expect(got.KeyPoints).To(Equal([]string{"refund"}))
	})

	It("sweeps expired sessions", func() {
		Expect(store.PutContext(ctx, "old", model.ConversationContext{})).To(Succeed())
		now = now.Add(5 * time.Minute)
		Expect(store.PutContext(ctx, "new", model.ConversationContext{})).To(Succeed())
		now = now.Add(6 * time.Minute)

		Expect(store.Sweep()).To(Equal(1))
		Expect(store.Len()).To(Equal(1))
	})
})

var _ = Describe("RedisStore", func() {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		It("needs REDIS_URL", func() { Skip("REDIS_URL not set") })
		return
	}

	var client *redis.Client

	BeforeEach(func() {
		opts, err := redis.ParseURL(url)
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(opts)
		DeferCleanup(client.Close)
	})

	storeContract(func() session.Store {
		prefix := fmt.Sprintf("assist_test:%d:", time.Now().UnixNano())
		return session.NewRedisStore(client, prefix, time.Minute, 5)
	})
})
