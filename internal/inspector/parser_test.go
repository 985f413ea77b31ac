package inspector_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/internal/inspector"
	"basegraph.app/assist/internal/model"
)

var _ = Describe("Parse", func() {
	It("reads speaker-labelled lines with either colon", func() {
		conv, err := inspector.Parse("客户：我的账单不对\n客服: 您好，请问是哪个月？\nCustomer: October")
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Turns).To(HaveLen(3))
		Expect(conv.Turns[0]).To(Equal(model.ConversationTurn{Speaker: model.SpeakerCustomer, Text: "我的账单不对"}))
		Expect(conv.Turns[1].Speaker).To(Equal(model.SpeakerAgent))
		Expect(conv.Turns[2].Speaker).To(Equal(model.SpeakerCustomer))
		Expect(conv.Metadata["format"]).To(Equal("text"))
	})

	It("reads bracketed labels and timestamps", func() {
		conv, err := inspector.Parse("[Customer] hi there\n[10:02:11] 坐席: 您好\n[agent] how can I help")
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Turns).To(HaveLen(3))
		Expect(conv.Turns[0].Text).To(Equal("hi there"))
		Expect(conv.Turns[1].Speaker).To(Equal(model.SpeakerAgent))
		Expect(conv.Turns[1].Timestamp.Hour()).To(Equal(10))
		Expect(conv.Turns[2].Speaker).To(Equal(model.SpeakerAgent))
	})

	It("joins unlabelled lines onto the previous turn", func() {
		conv, err := inspector.Parse("用户: 第一行\n第二行\n客服: 好的")
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Turns).To(HaveLen(2))
		Expect(conv.Turns[0].Text).To(Equal("第一行 第二行"))
	})

	It("derives a stable session id from the content", func() {
		a, _ := inspector.Parse("客户: 你好")
		b, _ := inspector.Parse("客户: 你好")
		Expect(a.SessionID).To(HaveLen(12))
		Expect(a.SessionID).To(Equal(b.SessionID))
	})

	It("reads a JSON list of turns", func() {
		conv, err := inspector.Parse(`[{"speaker":"customer","text":"hi"},{"speaker":"客服","content":"您好"}]`)
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Turns).To(HaveLen(2))
		Expect(conv.Turns[1].Text).To(Equal("您好"))
		Expect(conv.Metadata["format"]).To(Equal("json"))
	})

	It("reads a JSON object and keeps its session id", func() {
		conv, err := inspector.Parse(`{"session_id":"call-42","turns":[{"speaker":"user","text":"hello"}]}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.SessionID).To(Equal("call-42"))
	})

	DescribeTable("rejects input without speaker structure",
		func(raw string) {
			_, err := inspector.Parse(raw)
			var pErr *model.ParsingError
			Expect(errors.As(err, &pErr)).To(BeTrue())
		},
		Entry("empty", "   "),
		Entry("prose", "this is just a paragraph\nwith no speakers"),
		Entry("unknown json speaker", `[{"speaker":"robot","text":"beep"}]`),
		Entry("json without turns", `{"session_id":"x"}`),
		Entry("broken json object", `{"turns": [`),
		Entry("label without text", "客户:\n客服: 你好"),
	)
})
