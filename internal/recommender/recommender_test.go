package recommender_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/core/config"
	"basegraph.app/assist/internal/adapter"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/recommender"
	"basegraph.app/assist/internal/session"
	"basegraph.app/assist/internal/vectorstore"
)

const (
	billingContext = `{"topic":"账单疑问","stage":"diagnosis","complexity":"medium","satisfaction":0.5,"key_points":["本月账单多扣费"],"emotion":"anxious"}`
	billingIntent  = "```json\n" + `{"intent_type":"account_inquiry","sub_intent":"bill_dispute","confidence":0.86,"required_info":["账单月份"],"suggested_actions":["查询账单明细"]}` + "\n```"
)

var billingTurns = []model.ConversationTurn{
	{Speaker: model.SpeakerCustomer, Text: "你好，我这个月的账单怎么多扣了五十块？"},
	{Speaker: model.SpeakerAgent, Text: "您好，请问是哪个月的账单呢？"},
	{Speaker: model.SpeakerCustomer, Text: "就是十月的账单，多扣费了"},
}

var _ = Describe("Recommender", func() {
	var (
		ctx    context.Context
		gen    *fakeGenerator
		vs     *vectorstore.Memory
		store  *session.MemoryStore
		rec    *recommender.Recommender
		policy *config.PolicyWatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		gen = newFakeGenerator()
		gen.reply("conversation_context", billingContext)
		gen.reply("user_intent", billingIntent)

		vs = vectorstore.NewMemory()
		_, err := vs.Add(ctx, []vectorstore.Document{
			{ID: "b1", Content: "{name}您好，关于账单多扣费的问题，我马上为您查询账单明细。", Metadata: map[string]any{"category": "billing", "title": "账单多扣费", "usage_count": 40, "success_rate": 0.9}},
			{ID: "b2", Content: "账单明细可以在 App 的账单页面查看。", Metadata: map[string]any{"category": "billing", "usage_count": 5, "success_rate": 0.6}},
			{ID: "t1", Content: "请您重启路由器后再试一次。", Metadata: map[string]any{"category": "technical"}},
		})
		Expect(err).NotTo(HaveOccurred())

		search := adapter.NewSearch(vs, adapter.SearchConfig{}, adapter.Options{
			Retry: adapter.RetryPolicy{MaxAttempts: 1, Base: time.Millisecond, Factor: 1, MaxDelay: time.Millisecond},
		})
		store = session.NewMemoryStore(time.Minute, 20)
		policy = config.Static(config.DefaultPolicy())
		rec = recommender.New(gen, search, store, policy, recommender.Config{Deadline: 5 * time.Second})
	})

	Describe("Recommend", func() {
		It("recommends billing scripts for a billing conversation", func() {
			resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-bill", Turns: billingTurns, Count: 2})
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Degraded).To(BeFalse())
			Expect(resp.Context.Stage).To(Equal(model.StageDiagnosis))
			Expect(resp.Intent.IntentType).To(Equal(model.IntentAccountInquiry))
			Expect(resp.Intent.Confidence).To(BeNumerically(">=", 0.5))

			Expect(resp.Scripts).NotTo(BeEmpty())
			for i, s := range resp.Scripts {
				Expect(s.Category).To(Equal("billing"))
				Expect(s.Rank).To(Equal(i + 1))
				if i > 0 {
					Expect(s.Score).To(BeNumerically("<=", resp.Scripts[i-1].Score))
				}
			}
			Expect(resp.Scripts[0].ID).To(Equal("b1"))
		})

		It("stores context and intent for the session", func() {
			_, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-store", Turns: billingTurns})
			Expect(err).NotTo(HaveOccurred())

			state, err := rec.Session(ctx, "s-store")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Context.Topic).To(Equal("账单疑问"))
			Expect(state.Intents).To(HaveLen(1))
			Expect(state.Intents[0].Sequence).To(BeEquivalentTo(1))
		})

		It("degrades to a literal search when no candidate matches the category", func() {
			Expect(vs.Delete(ctx, nil, vectorstore.Filter{"category": "billing"})).To(Succeed())
			_, err := vs.Add(ctx, []vectorstore.Document{{ID: "g1", Content: "十月的账单 多扣费 请稍等", Metadata: map[string]any{"category": "general"}}})
			Expect(err).NotTo(HaveOccurred())

			resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-empty", Turns: billingTurns})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Degraded).To(BeTrue())
			Expect(resp.DegradedReason).To(ContainSubstring("no candidates"))
			Expect(resp.Scripts).To(HaveLen(1))
			Expect(resp.Scripts[0].ID).To(Equal("g1"))
		})

		It("flags the response even when the literal search finds nothing", func() {
			Expect(vs.Delete(ctx, []string{"b1", "b2", "t1"}, nil)).To(Succeed())

			resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-none", Turns: billingTurns})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Degraded).To(BeTrue())
			Expect(resp.Scripts).To(BeEmpty())
		})

		It("degrades when context analysis exhausts retries", func() {
			gen.on("conversation_context", func(string) (string, error) {
				return "", &model.ServiceUnavailableError{Service: adapter.ServiceGeneration, Attempts: 3, Err: errors.New("503")}
			})

			resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-down", Turns: billingTurns})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Degraded).To(BeTrue())
			Expect(resp.DegradedReason).To(ContainSubstring("context analysis"))
			Expect(resp.Context).To(BeNil())
			Expect(gen.count("user_intent")).To(BeZero())
			Expect(resp.Scripts).NotTo(BeEmpty())
		})

		It("degrades when the intent response is malformed", func() {
			gen.reply("user_intent", `{"intent_type":"weather","confidence":0.9}`)

			resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-bad", Turns: billingTurns})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Degraded).To(BeTrue())
			Expect(resp.DegradedReason).To(ContainSubstring("intent recognition"))
			Expect(resp.Context).NotTo(BeNil())
		})

		It("degrades without starting intent recognition when context analysis leaves too little budget", func() {
			rec = recommender.New(gen, adapter.NewSearch(vs, adapter.SearchConfig{}, adapter.Options{
				Retry: adapter.RetryPolicy{MaxAttempts: 1, Base: time.Millisecond, Factor: 1, MaxDelay: time.Millisecond},
			}), store, policy, recommender.Config{
				Deadline:        2 * time.Second,
				StageReserve:    time.Second,
				FallbackReserve: 200 * time.Millisecond,
			})
			gen.on("conversation_context", func(string) (string, error) {
				time.Sleep(time.Second)
				return billingContext, nil
			})

			resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-slow", Turns: billingTurns})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Degraded).To(BeTrue())
			Expect(resp.DegradedReason).To(ContainSubstring("budget nearly exhausted"))
			Expect(resp.Context).NotTo(BeNil())
			Expect(gen.count("user_intent")).To(BeZero())
			Expect(resp.Scripts).NotTo(BeEmpty())
		})

		It("keeps the literal fallback search within the deadline", func() {
			slow := &slowStore{Memory: vs, delay: 2 * time.Second}
			rec = recommender.New(gen, adapter.NewSearch(slow, adapter.SearchConfig{}, adapter.Options{
				Retry: adapter.RetryPolicy{MaxAttempts: 1, Base: time.Millisecond, Factor: 1, MaxDelay: time.Millisecond},
			}), store, policy, recommender.Config{
				Deadline:     300 * time.Millisecond,
				StageReserve: time.Millisecond,
			})

			start := time.Now()
			resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-slow-search", Turns: billingTurns})
			Expect(err).NotTo(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
			Expect(resp.Degraded).To(BeTrue())
			Expect(resp.DegradedReason).To(ContainSubstring("retrieval"))
			Expect(resp.Scripts).To(BeEmpty())
		})

		It("rejects a conversation without a customer turn", func() {
			_, err := rec.Recommend(ctx, recommender.RecommendRequest{
				SessionID: "s-x",
				Turns:     []model.ConversationTurn{{Speaker: model.SpeakerAgent, Text: "您好"}},
			})
			Expect(model.IsValidation(err)).To(BeTrue())
		})

		It("returns the caller's cancellation instead of degrading", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := rec.Recommend(cctx, recommender.RecommendRequest{SessionID: "s-c", Turns: billingTurns})
			Expect(err).To(MatchError(context.Canceled))
		})

		Describe("personalization", func() {
			profile := &model.CustomerProfile{Name: "王女士", CustomerType: model.CustomerVIP, Age: 62}

			It("adapts the top script for the customer", func() {
				gen.on("", func(prompt string) (string, error) {
					Expect(prompt).To(ContainSubstring("patient and detailed"))
					return "王女士您好，您反映的账单多扣费问题我这就耐心为您核实。", nil
				})

				resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-p", Turns: billingTurns, Profile: profile})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Scripts[0].Personalized).To(HavePrefix("王女士您好"))
			})

			It("keeps the substituted script when the model fails", func() {
				gen.on("", func(string) (string, error) { return "", errors.New("boom") })

				resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-pf", Turns: billingTurns, Profile: profile})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Degraded).To(BeFalse())
				Expect(resp.Scripts[0].Personalized).To(HavePrefix("王女士您好，关于账单"))
			})

			It("skips adaptation when the budget is within one retry cycle", func() {
				gen.cycle = time.Hour
				gen.reply("", "should not be used")

				resp, err := rec.Recommend(ctx, recommender.RecommendRequest{SessionID: "s-ps", Turns: billingTurns, Profile: profile})
				Expect(err).NotTo(HaveOccurred())
				Expect(gen.count("")).To(BeZero())
				Expect(resp.Scripts[0].Text()).NotTo(ContainSubstring("should not"))
			})
		})
	})

	Describe("AnalyzeContext", func() {
		It("rejects a response that does not match the schema", func() {
			gen.reply("conversation_context", `{"topic":"x","stage":"diagnosis","complexity":"medium","satisfaction":0.5,"key_points":[],"mood":"ok"}`)

			_, err := rec.AnalyzeContext(ctx, "s", billingTurns)
			Expect(model.IsValidation(err)).To(BeTrue())

			_, ok, _ := store.GetContext(ctx, "s")
			Expect(ok).To(BeFalse())
		})

		It("rejects a response without satisfaction", func() {
			gen.reply("conversation_context", `{"topic":"x","stage":"diagnosis","complexity":"medium","key_points":[],"emotion":"neutral"}`)
			_, err := rec.AnalyzeContext(ctx, "s", billingTurns)
			var v *model.ValidationError
			Expect(errors.As(err, &v)).To(BeTrue())
			Expect(v.Field).To(Equal("satisfaction"))
		})

		It("rejects an unknown stage", func() {
			gen.reply("conversation_context", strings.Replace(billingContext, "diagnosis", "haggling", 1))
			_, err := rec.AnalyzeContext(ctx, "s", billingTurns)
			Expect(model.IsValidation(err)).To(BeTrue())
		})
	})

	Describe("RecognizeIntent", func() {
		It("uses the stored context when none is given", func() {
			_, err := rec.AnalyzeContext(ctx, "s", billingTurns)
			Expect(err).NotTo(HaveOccurred())

			var seen string
			gen.on("user_intent", func(prompt string) (string, error) {
				seen = prompt
				return billingIntent, nil
			})
			_, err = rec.RecognizeIntent(ctx, "s", "多扣费了", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(ContainSubstring("账单疑问"))
		})

		It("rejects a response without confidence", func() {
			gen.reply("user_intent", `{"intent_type":"account_inquiry","sub_intent":"bill_dispute","required_info":[],"suggested_actions":[]}`)
			_, err := rec.RecognizeIntent(ctx, "s-noconf", "多扣费了", nil)
			var v *model.ValidationError
			Expect(errors.As(err, &v)).To(BeTrue())
			Expect(v.Field).To(Equal("confidence"))

			_, ok, _ := store.GetIntent(ctx, "s-noconf")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("PredictNextIntent", func() {
		It("needs at least one recognized intent", func() {
			_, err := rec.PredictNextIntent(ctx, "fresh")
			Expect(model.IsValidation(err)).To(BeTrue())
		})

		It("predicts from history", func() {
			_, err := rec.RecognizeIntent(ctx, "s", "多扣费了", nil)
			Expect(err).NotTo(HaveOccurred())
			gen.reply("next_intent", `{"intent_type":"complaint","confidence":0.4,"reason":"repeated overcharge"}`)

			p, err := rec.PredictNextIntent(ctx, "s")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.IntentType).To(Equal(model.IntentComplaint))
		})
	})

	Describe("ExtractEmotion", func() {
		It("labels a message", func() {
			gen.reply("emotion_analysis", `{"emotion":"angry","confidence":0.9,"intensity":1.4,"traits":["impatient"]}`)
			e, err := rec.ExtractEmotion(ctx, "你们怎么又乱扣钱！")
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Emotion).To(Equal(model.EmotionAngry))
			Expect(e.Intensity).To(Equal(1.0))
		})
	})

	Describe("GenerateGreeting", func() {
		It("falls back to a template", func() {
			gen.on("", func(string) (string, error) { return "", errors.New("down") })
			g, err := rec.GenerateGreeting(ctx, model.CustomerProfile{Name: "李先生"})
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Adapted).To(BeFalse())
			Expect(g.Text).To(Equal("您好，李先生！"))
		})
	})
})
