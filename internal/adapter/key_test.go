package adapter_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/internal/adapter"
)

var _ = Describe("Key", func() {
	It("is independent of parameter insertion order", func() {
		a := map[string]any{}
		a["temperature"] = 0.7
		a["top_p"] = 0.9
		a["max_output_length"] = 256

		b := map[string]any{}
		b["max_output_length"] = 256
		b["top_p"] = 0.9
		b["temperature"] = 0.7

		ka, err := adapter.Key("p:", "generate", "hello", a)
		Expect(err).NotTo(HaveOccurred())
		kb, err := adapter.Key("p:", "generate", "hello", b)
		Expect(err).NotTo(HaveOccurred())
		Expect(ka).To(Equal(kb))
	})

	It("differs by kind, operand and parameters", func() {
		base, _ := adapter.Key("p:", "generate", "hello", map[string]any{"t": 1})
		kind, _ := adapter.Key("p:", "search", "hello", map[string]any{"t": 1})
		operand, _ := adapter.Key("p:", "generate", "hello!", map[string]any{"t": 1})
		param, _ := adapter.Key("p:", "generate", "hello", map[string]any{"t": 2})

		Expect(base).To(HavePrefix("p:generate:"))
		Expect([]string{kind, operand, param}).NotTo(ContainElement(base))
	})

	It("fails on unencodable parameters", func() {
		_, err := adapter.Key("p:", "generate", "x", map[string]any{"bad": math.Inf(1)})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("RetryPolicy", func() {
	p := adapter.RetryPolicy{MaxAttempts: 5, Base: 100 * time.Millisecond, Factor: 2, MaxDelay: 300 * time.Millisecond}

	DescribeTable("backoff grows exponentially within jitter bounds",
		func(attempt int, nominal time.Duration) {
			for i := 0; i < 50; i++ {
				d := p.Backoff(attempt)
				Expect(d).To(BeNumerically(">=", nominal*3/4))
				Expect(d).To(BeNumerically("<=", nominal*5/4))
			}
		},
		Entry("first retry", 1, 100*time.Millisecond),
		Entry("second retry", 2, 200*time.Millisecond),
		Entry("capped", 3, 300*time.Millisecond),
		Entry("stays capped", 4, 300*time.Millisecond),
	)

	It("reports a retry cycle covering one timeout plus the first backoff", func() {
		Expect(p.Cycle(time.Second)).To(Equal(time.Second + 125*time.Millisecond))
	})
})
