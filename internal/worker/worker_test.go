package worker_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/queue"
	"basegraph.app/assist/internal/store"
	"basegraph.app/assist/internal/worker"
)

func message(id string, attempt int) queue.Message {
	return queue.Message{ID: id, InspectionJob: queue.InspectionJob{JobID: "job-" + id, Content: "客户：你好", Attempt: attempt}}
}

var _ = Describe("Worker", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("acks processed jobs", func() {
		consumer := newFakeConsumer()
		w := worker.New(consumer, processorFunc(func(context.Context, queue.InspectionJob) (*model.InspectionReport, error) {
			return &model.InspectionReport{ID: 1}, nil
		}), worker.Config{MaxAttempts: 3})

		Expect(w.Handle(ctx, message("1-0", 1))).To(Succeed())
		Expect(consumer.acked).To(Equal([]string{"1-0"}))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("requeues transient failures until attempts run out", func() {
		consumer := newFakeConsumer()
		unavailable := &model.ServiceUnavailableError{Service: "generation", Attempts: 3, Err: errors.New("503")}
		w := worker.New(consumer, processorFunc(func(context.Context, queue.InspectionJob) (*model.InspectionReport, error) {
			return nil, &model.InspectionError{Failures: map[model.Dimension]error{model.DimensionAttitude: unavailable}}
		}), worker.Config{MaxAttempts: 3})

		Expect(w.Handle(ctx, message("1-0", 1))).NotTo(Succeed())
		Expect(w.Handle(ctx, message("2-0", 3))).NotTo(Succeed())

		Expect(consumer.requeued).To(Equal([]string{"1-0"}))
		Expect(consumer.dead).To(HaveKey("2-0"))
		Expect(consumer.acked).To(BeEmpty())
	})

	It("dead-letters unparseable conversations on the first attempt", func() {
		consumer := newFakeConsumer()
		w := worker.New(consumer, processorFunc(func(context.Context, queue.InspectionJob) (*model.InspectionReport, error) {
			return nil, &model.ParsingError{Reason: "no speaker labels found"}
		}), worker.Config{MaxAttempts: 3})

		Expect(w.Handle(ctx, message("1-0", 1))).NotTo(Succeed())
		Expect(consumer.dead).To(HaveKeyWithValue("1-0", ContainSubstring("no speaker labels")))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("turns a panic into a failure", func() {
		consumer := newFakeConsumer()
		w := worker.New(consumer, processorFunc(func(context.Context, queue.InspectionJob) (*model.InspectionReport, error) {
			panic("boom")
		}), worker.Config{MaxAttempts: 1})

		Expect(w.Handle(ctx, message("1-0", 1))).To(MatchError(ContainSubstring("panic: boom")))
		Expect(consumer.dead).To(HaveKey("1-0"))
	})

	It("drains batches until stopped", func() {
		consumer := newFakeConsumer([]queue.Message{message("1-0", 1), message("2-0", 1)}, []queue.Message{message("3-0", 1)})
		w := worker.New(consumer, processorFunc(func(context.Context, queue.InspectionJob) (*model.InspectionReport, error) {
			return &model.InspectionReport{}, nil
		}), worker.Config{})

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		Eventually(func() int {
			consumer.mu.Lock()
			defer consumer.mu.Unlock()
			return len(consumer.acked)
		}).WithTimeout(2 * time.Second).Should(Equal(3))

		w.Stop()
		Eventually(done).Should(Receive(BeNil()))
	})
})

var _ = Describe("Processor", func() {
	It("parses, inspects and stores the conversation", func() {
		reports := store.NewMemoryReports()
		ins := &fakeInspector{inspectFn: func(conv *model.ParsedConversation) (*model.InspectionReport, error) {
			return &model.InspectionReport{ID: 77, SessionID: conv.SessionID, OverallScore: 90, TurnCount: len(conv.Turns), Review: model.Generated{}}, nil
		}}
		p := worker.NewProcessor(ins, reports)

		report, err := p.Process(context.Background(), queue.InspectionJob{
			JobID:     "j",
			Content:   "客户：我的账单有问题\n客服：我来帮您查询",
			SessionID: "batch-7",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.ID).To(Equal(int64(77)))
		Expect(ins.seen).To(HaveLen(1))
		Expect(ins.seen[0].SessionID).To(Equal("batch-7"))
		Expect(ins.seen[0].Turns).To(HaveLen(2))

		stored, err := reports.Get(context.Background(), 77)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.SessionID).To(Equal("batch-7"))
	})

	It("returns parsing errors without inspecting", func() {
		ins := &fakeInspector{}
		p := worker.NewProcessor(ins, store.NewMemoryReports())

		_, err := p.Process(context.Background(), queue.InspectionJob{JobID: "j", Content: "no labels here"})
		var parseErr *model.ParsingError
		Expect(errors.As(err, &parseErr)).To(BeTrue())
		Expect(ins.seen).To(BeEmpty())
	})
})
