package adapter_test

import (
	"context"
	"errors"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/internal/adapter"
	"basegraph.app/assist/internal/cache"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/vectorstore"
)

var _ = Describe("Search", func() {
	var (
		store *mockStore
		s     *adapter.Search
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = &mockStore{
			searchFn: func(_ context.Context, queries []string, limit int, _ vectorstore.Filter) ([][]vectorstore.Hit, error) {
				return [][]vectorstore.Hit{{
					{Document: vectorstore.Document{ID: "s1", Content: "ours", Metadata: map[string]any{"category": "billing"}}, Score: 0.9},
				}}, nil
			},
		}
		s = adapter.NewSearch(store, adapter.SearchConfig{MaxQueryLength: 50, MaxLimit: 20, TTL: time.Hour}, adapter.Options{
			Cache: cache.NewMemory(),
			Retry: adapter.RetryPolicy{MaxAttempts: 3, Base: time.Millisecond},
		})
	})

	It("returns hits and caches them", func() {
		hits, err := s.Search(ctx, "refund", vectorstore.Filter{"category": "billing"}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].ID).To(Equal("s1"))
		Expect(hits[0].Metadata).To(HaveKeyWithValue("category", "billing"))

		_, err = s.Search(ctx, "refund", vectorstore.Filter{"category": "billing"}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.calls.Load()).To(Equal(int32(1)))
	})

	It("separates cache entries by filter", func() {
		_, _ = s.Search(ctx, "refund", vectorstore.Filter{"category": "billing"}, 5)
		_, _ = s.Search(ctx, "refund", vectorstore.Filter{"category": "technical"}, 5)
		Expect(store.calls.Load()).To(Equal(int32(2)))
	})

	DescribeTable("rejects bad input before calling the store",
		func(query string, limit int) {
			_, err := s.Search(ctx, query, nil, limit)
			Expect(model.IsValidation(err)).To(BeTrue())
			Expect(store.calls.Load()).To(BeZero())
		},
		Entry("empty query", "", 5),
		Entry("oversize query", string(make([]byte, 51)), 5),
		Entry("limit above max", "q", 21),
		Entry("negative limit", "q", -1),
	)

	It("retries network errors then reports the search service as unavailable", func() {
		store.searchFn = func(context.Context, []string, int, vectorstore.Filter) ([][]vectorstore.Hit, error) {
			return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}

		_, err := s.Search(ctx, "refund", nil, 5)

		var su *model.ServiceUnavailableError
		Expect(errors.As(err, &su)).To(BeTrue())
		Expect(su.Service).To(Equal(adapter.ServiceSearch))
		Expect(store.calls.Load()).To(Equal(int32(3)))
	})

	It("does not retry a permanent backend error", func() {
		store.searchFn = func(context.Context, []string, int, vectorstore.Filter) ([][]vectorstore.Hit, error) {
			return nil, &vectorstore.HTTPStatusError{StatusCode: 400, Body: "bad filter"}
		}
		_, err := s.Search(ctx, "refund", nil, 5)
		Expect(model.IsServiceUnavailable(err)).To(BeTrue())
		Expect(store.calls.Load()).To(Equal(int32(1)))
	})

	It("validates documents on add", func() {
		_, err := s.Add(ctx, []vectorstore.Document{{ID: "", Content: "x"}})
		Expect(model.IsValidation(err)).To(BeTrue())

		ids, err := s.Add(ctx, []vectorstore.Document{{ID: "a", Content: "x"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"a"}))
	})

	It("requires ids or a filter on delete", func() {
		Expect(model.IsValidation(s.Delete(ctx, nil, nil))).To(BeTrue())
		Expect(s.Delete(ctx, []string{"a"}, nil)).To(Succeed())
	})
})
