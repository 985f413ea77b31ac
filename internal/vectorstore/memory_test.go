package vectorstore_test

import (
	"context"
	"errors"
	"fmt"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/internal/vectorstore"
)

var _ = Describe("Memory", func() {
	var (
		store *vectorstore.Memory
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = vectorstore.NewMemory()
		_, err := store.Add(ctx, []vectorstore.Document{
			{ID: "s1", Content: "您好，关于账单问题我来为您查询", Metadata: map[string]any{"category": "billing", "usage_count": 12}},
			{ID: "s2", Content: "账单明细可以在 app 中查看", Metadata: map[string]any{"category": "billing"}},
			{ID: "s3", Content: "reset your router and try again", Metadata: map[string]any{"category": "technical"}},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("ranks by similarity within [0,1]", func() {
		res, err := store.Search(ctx, []string{"账单问题"}, 10, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(HaveLen(1))
		Expect(res[0]).To(HaveLen(2))
		Expect(res[0][0].ID).To(Equal("s1"))
		for _, h := range res[0] {
			Expect(h.Score).To(BeNumerically(">", 0))
			Expect(h.Score).To(BeNumerically("<=", 1))
		}
	})

	It("returns one list per query", func() {
		res, err := store.Search(ctx, []string{"router", "账单"}, 10, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(HaveLen(2))
		Expect(res[0][0].ID).To(Equal("s3"))
		Expect(res[1]).NotTo(BeEmpty())
	})

	It("applies metadata filters, comparing numbers as text", func() {
		res, err := store.Search(ctx, []string{"账单"}, 10, vectorstore.Filter{"usage_count": "12"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res[0]).To(HaveLen(1))
		Expect(res[0][0].ID).To(Equal("s1"))
	})

	It("honors the limit", func() {
		res, err := store.Search(ctx, []string{"账单"}, 1, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res[0]).To(HaveLen(1))
	})

	It("replaces a document added twice", func() {
		_, err := store.Add(ctx, []vectorstore.Document{{ID: "s3", Content: "modem restart"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Len()).To(Equal(3))

		res, _ := store.Search(ctx, []string{"router"}, 10, nil)
		Expect(res[0]).To(BeEmpty())
	})

	It("deletes by id or by filter", func() {
		Expect(store.Delete(ctx, []string{"s3"}, nil)).To(Succeed())
		Expect(store.Len()).To(Equal(2))

		Expect(store.Delete(ctx, nil, vectorstore.Filter{"category": "billing"})).To(Succeed())
		Expect(store.Len()).To(BeZero())
	})

	It("refuses an unscoped delete", func() {
		Expect(store.Delete(ctx, nil, nil)).To(MatchError(vectorstore.ErrEmptyDelete))
	})
})

var _ = Describe("FilterBy", func() {
	It("renders sorted backtick-quoted clauses", func() {
		Expect(vectorstore.FilterBy(vectorstore.Filter{"tier": "gold", "category": "billing"})).
			To(Equal("category:=`billing` && tier:=`gold`"))
	})

	It("is empty for no filter", func() {
		Expect(vectorstore.FilterBy(nil)).To(BeEmpty())
	})
})

var _ = Describe("IsRetryable", func() {
	ctx := context.Background()

	DescribeTable("classification",
		func(err error, want bool) {
			Expect(vectorstore.IsRetryable(ctx, err)).To(Equal(want))
		},
		Entry("rate limited", &vectorstore.HTTPStatusError{StatusCode: 429}, true),
		Entry("server error", fmt.Errorf("wrapped: %w", &vectorstore.HTTPStatusError{StatusCode: 503}), true),
		Entry("bad request", &vectorstore.HTTPStatusError{StatusCode: 400}, false),
		Entry("network", &net.OpError{Op: "dial", Err: errors.New("refused")}, true),
		Entry("cancelled", context.Canceled, false),
		Entry("attempt timeout", context.DeadlineExceeded, true),
		Entry("other", errors.New("boom"), false),
	)
})

var _ = Describe("Similarity", func() {
	It("is 1 for identical text and 0 for disjoint text", func() {
		Expect(vectorstore.Similarity("宽带断线", "宽带断线")).To(BeNumerically("~", 1, 1e-9))
		Expect(vectorstore.Similarity("宽带断线", "账单")).To(BeZero())
		Expect(vectorstore.Similarity("", "账单")).To(BeZero())
	})

	It("ranks a paraphrase between the two", func() {
		s := vectorstore.Similarity("怎么修改套餐", "我想换一个套餐怎么办理")
		Expect(s).To(BeNumerically(">", 0))
		Expect(s).To(BeNumerically("<", 0.9))
	})
})
