package adapter_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/internal/adapter"
	"basegraph.app/assist/internal/cache"
	"basegraph.app/assist/internal/model"
)

var _ = Describe("Generation", func() {
	var (
		gen      *mockGenerator
		store    *cache.Memory
		recorder *capturingRecorder
		g        *adapter.Generation
		params   adapter.GenerateParams
		ctx      context.Context
	)

	fastRetry := adapter.RetryPolicy{MaxAttempts: 3, Base: time.Millisecond, Factor: 2, MaxDelay: 5 * time.Millisecond}

	BeforeEach(func() {
		ctx = context.Background()
		gen = &mockGenerator{}
		store = cache.NewMemory()
		recorder = &capturingRecorder{}
		g = adapter.NewGeneration(gen, adapter.GenerationConfig{
			MaxPromptLength: 100,
			TTL:             time.Minute,
			Defaults:        adapter.GenerateParams{Temperature: 0.7, MaxOutputLength: 256, TopP: 0.9},
		}, adapter.Options{
			Cache:       store,
			Recorder:    recorder,
			Retry:       fastRetry,
			CallTimeout: time.Second,
			KeyPrefix:   "test:",
		})
		params = g.Defaults()
	})

	Describe("validation", func() {
		It("rejects an oversize prompt without calling upstream", func() {
			_, err := g.Generate(ctx, strings.Repeat("x", 101), params)

			var vErr *model.ValidationError
			Expect(errors.As(err, &vErr)).To(BeTrue())
			Expect(vErr.Field).To(Equal("prompt"))
			Expect(gen.calls.Load()).To(BeZero())
		})

		It("counts characters, not bytes", func() {
			_, err := g.Generate(ctx, strings.Repeat("账", 100), params)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects an empty prompt", func() {
			_, err := g.Generate(ctx, "", params)
			Expect(model.IsValidation(err)).To(BeTrue())
		})

		It("rejects out of range sampling parameters", func() {
			params.TopP = 0
			_, err := g.Generate(ctx, "hi", params)
			Expect(model.IsValidation(err)).To(BeTrue())
		})
	})

	Describe("caching", func() {
		It("serves an identical second call from cache", func() {
			first, err := g.Generate(ctx, "hello", params)
			Expect(err).NotTo(HaveOccurred())
			second, err := g.Generate(ctx, "hello", params)
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(Equal(first))
			Expect(gen.calls.Load()).To(Equal(int32(1)))

			records := recorder.All()
			Expect(records).To(HaveLen(2))
			Expect(records[0].CacheHit).To(BeFalse())
			Expect(records[1].CacheHit).To(BeTrue())
			Expect(records[1].Outcome).To(Equal(adapter.OutcomeSuccess))
		})

		It("keys on parameters", func() {
			_, _ = g.Generate(ctx, "hello", params)
			params.Temperature = 0.1
			_, _ = g.Generate(ctx, "hello", params)
			Expect(gen.calls.Load()).To(Equal(int32(2)))
		})

		It("does not cache failures", func() {
			gen.generateFn = func(context.Context, llm.Request) (*llm.Response, error) {
				return nil, llm.Fatal(errors.New("bad request"))
			}
			_, err := g.Generate(ctx, "hello", params)
			Expect(err).To(HaveOccurred())

			gen.generateFn = nil
			out, err := g.Generate(ctx, "hello", params)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("ok:hello"))
			Expect(gen.calls.Load()).To(Equal(int32(2)))
		})
	})

	Describe("coalescing", func() {
		It("runs one upstream call for concurrent identical requests", func() {
			release := make(chan struct{})
			gen.generateFn = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				<-release
				return &llm.Response{Content: "shared"}, nil
			}

			const n = 10
			var wg sync.WaitGroup
			results := make([]string, n)
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					results[i], errs[i] = g.Generate(ctx, "burst", params)
				}(i)
			}

			Eventually(gen.calls.Load).Should(Equal(int32(1)))
			// Give the remaining callers time to join the in-flight call.
			time.Sleep(20 * time.Millisecond)
			close(release)
			wg.Wait()

			Expect(gen.calls.Load()).To(Equal(int32(1)))
			for i := 0; i < n; i++ {
				Expect(errs[i]).NotTo(HaveOccurred())
				Expect(results[i]).To(Equal("shared"))
			}
		})

		It("delivers the same failure to every waiter", func() {
			release := make(chan struct{})
			gen.generateFn = func(context.Context, llm.Request) (*llm.Response, error) {
				<-release
				return nil, llm.Fatal(errors.New("unauthorized"))
			}

			var wg sync.WaitGroup
			errs := make([]error, 4)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, errs[i] = g.Generate(ctx, "burst", params)
				}(i)
			}
			Eventually(gen.calls.Load).Should(Equal(int32(1)))
			time.Sleep(20 * time.Millisecond)
			close(release)
			wg.Wait()

			for _, err := range errs {
				Expect(model.IsServiceUnavailable(err)).To(BeTrue())
			}
			Expect(gen.calls.Load()).To(Equal(int32(1)))
		})
	})

	Describe("retries", func() {
		It("retries transient failures and succeeds", func() {
			gen.generateFn = func(_ context.Context, req llm.Request) (*llm.Response, error) {
				if gen.calls.Load() < 3 {
					return nil, llm.Transient(errors.New("connection reset"))
				}
				return &llm.Response{Content: "recovered"}, nil
			}

			out, err := g.Generate(ctx, "flaky", params)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("recovered"))
			Expect(gen.calls.Load()).To(Equal(int32(3)))
			Expect(recorder.All()[0].Attempts).To(Equal(3))
		})

		It("fails immediately on a permanent error", func() {
			gen.generateFn = func(context.Context, llm.Request) (*llm.Response, error) {
				return nil, llm.Fatal(errors.New("invalid api key"))
			}

			_, err := g.Generate(ctx, "nope", params)

			var su *model.ServiceUnavailableError
			Expect(errors.As(err, &su)).To(BeTrue())
			Expect(su.Attempts).To(Equal(1))
			Expect(gen.calls.Load()).To(Equal(int32(1)))
		})

		It("surfaces ServiceUnavailableError tagged with the service after exhausting retries", func() {
			gen.generateFn = func(context.Context, llm.Request) (*llm.Response, error) {
				return nil, llm.Transient(errors.New("timeout"))
			}

			_, err := g.Generate(ctx, "down", params)

			var su *model.ServiceUnavailableError
			Expect(errors.As(err, &su)).To(BeTrue())
			Expect(su.Service).To(Equal(adapter.ServiceGeneration))
			Expect(su.Attempts).To(Equal(3))
			Expect(gen.calls.Load()).To(Equal(int32(3)))
			Expect(recorder.All()[0].Outcome).To(Equal(adapter.OutcomeFailure))
		})

		It("applies the per-call timeout to each attempt", func() {
			g = adapter.NewGeneration(gen, adapter.GenerationConfig{}, adapter.Options{
				Cache:       store,
				Retry:       adapter.RetryPolicy{MaxAttempts: 2, Base: time.Millisecond},
				CallTimeout: 10 * time.Millisecond,
			})
			gen.generateFn = func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}

			_, err := g.Generate(ctx, "slow", adapter.GenerateParams{Temperature: 0.5, TopP: 1, MaxOutputLength: 10})
			Expect(model.IsServiceUnavailable(err)).To(BeTrue())
			Expect(gen.calls.Load()).To(Equal(int32(2)))
		})
	})

	Describe("cancellation", func() {
		It("stops waiting when the caller cancels and still caches the eventual result", func() {
			release := make(chan struct{})
			gen.generateFn = func(context.Context, llm.Request) (*llm.Response, error) {
				<-release
				return &llm.Response{Content: "late"}, nil
			}

			cctx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				_, err := g.Generate(cctx, "abandoned", params)
				done <- err
			}()

			Eventually(gen.calls.Load).Should(Equal(int32(1)))
			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))

			close(release)
			Eventually(func() string {
				out, _ := g.Generate(ctx, "abandoned", params)
				return out
			}).Should(Equal("late"))
			Expect(gen.calls.Load()).To(Equal(int32(1)))
		})
	})
})
