package adapter_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/internal/adapter"
	"basegraph.app/assist/internal/model"
)

var _ = Describe("Speech", func() {
	var (
		tr *mockTranscriber
		sp *adapter.Speech
	)

	BeforeEach(func() {
		tr = &mockTranscriber{}
		sp = adapter.NewSpeech(tr, adapter.Options{
			Retry:       adapter.RetryPolicy{MaxAttempts: 3, Base: time.Millisecond, Factor: 2, MaxDelay: 5 * time.Millisecond},
			CallTimeout: time.Second,
		})
	})

	It("rejects unsupported file types", func() {
		_, err := sp.Transcribe(context.Background(), strings.NewReader("RIFF"), "call.txt")
		Expect(model.IsValidation(err)).To(BeTrue())
		Expect(tr.calls.Load()).To(BeZero())
	})

	It("resends the whole recording on retry", func() {
		var seen []string
		tr.transcribeFn = func(_ context.Context, audio io.Reader, _ string) (*llm.Transcription, error) {
			b, _ := io.ReadAll(audio)
			seen = append(seen, string(b))
			if len(seen) == 1 {
				return nil, llm.Transient(errors.New("503 service unavailable"))
			}
			return &llm.Transcription{Text: "客户：你好", Language: "zh"}, nil
		}

		out, err := sp.Transcribe(context.Background(), strings.NewReader("audio-bytes"), "call.mp3")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Text).To(Equal("客户：你好"))
		Expect(seen).To(Equal([]string{"audio-bytes", "audio-bytes"}))
	})

	It("reports the service unavailable on a permanent failure", func() {
		tr.transcribeFn = func(context.Context, io.Reader, string) (*llm.Transcription, error) {
			return nil, llm.Fatal(errors.New("400 unsupported audio"))
		}
		_, err := sp.Transcribe(context.Background(), strings.NewReader("x"), "call.wav")

		var unavailable *model.ServiceUnavailableError
		Expect(errors.As(err, &unavailable)).To(BeTrue())
		Expect(unavailable.Service).To(Equal(adapter.ServiceSpeech))
		Expect(tr.calls.Load()).To(BeEquivalentTo(1))
	})
})
