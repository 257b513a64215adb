package backend_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/muuya/essence-logic/pkg/llm"
	"github.com/muuya/essence-logic/pkg/llm/backend"
)

func newTestBackend(service, upstreamURL string) backend.Backend {
	b, err := backend.New(backend.Config{
		Service: service,
		BaseURL: upstreamURL,
		Token:   "test-token",
	})
	Expect(err).NotTo(HaveOccurred())
	return b
}

var _ = Describe("New", func() {
	It("rejects an unknown service name", func() {
		_, err := backend.New(backend.Config{Service: "bedrock", Token: "t"})
		Expect(err).To(MatchError(ContainSubstring("unknown service")))
	})

	It("rejects a missing credential", func() {
		_, err := backend.New(backend.Config{Service: backend.Gateway})
		Expect(err).To(MatchError(ContainSubstring("no credential")))
	})

	It("accepts the legacy gateway service name", func() {
		b, err := backend.New(backend.Config{Service: "test", Token: "t"})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Name()).To(Equal(backend.Gateway))
	})

	It("trims a trailing slash from the base URL", func() {
		b, err := backend.New(backend.Config{
			Service: backend.DeepSeek,
			BaseURL: "https://api.deepseek.com/",
			Token:   "t",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.BaseURL()).To(Equal("https://api.deepseek.com"))
	})
})

var _ = Describe("NormalizeModel", func() {
	It("maps deepseek-chat to deepseek on the gateway", func() {
		b := newTestBackend(backend.Gateway, "http://localhost")
		Expect(b.NormalizeModel("deepseek-chat")).To(Equal("deepseek"))
		Expect(b.NormalizeModel("deepseek")).To(Equal("deepseek"))
		Expect(b.NormalizeModel("gemini-2.5-pro")).To(Equal("gemini-2.5-pro"))
	})

	It("maps deepseek to deepseek-chat on the direct endpoint", func() {
		b := newTestBackend(backend.DeepSeek, "http://localhost")
		Expect(b.NormalizeModel("deepseek")).To(Equal("deepseek-chat"))
		Expect(b.NormalizeModel("deepseek-reasoner")).To(Equal("deepseek-reasoner"))
	})
})

var _ = Describe("Complete", func() {
	var (
		upstream *httptest.Server
		received *http.Request
		reqBody  map[string]any
	)

	AfterEach(func() {
		if upstream != nil {
			upstream.Close()
		}
	})

	Context("with a healthy upstream", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				received = r
				Expect(json.NewDecoder(r.Body).Decode(&reqBody)).To(Succeed())
				fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"X"}}],"model":"m"}`)
			}))
		})

		It("parses the full response body", func() {
			b := newTestBackend(backend.Gateway, upstream.URL)

			resp, err := b.Complete(context.Background(), llm.NewChatRequest("deepseek", []llm.Message{
				llm.NewMessage(llm.RoleUser, "hi"),
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Model).To(Equal("m"))
			Expect(resp.Text()).To(Equal("X"))
		})

		It("targets the gateway /v1 path with a bearer token", func() {
			b := newTestBackend(backend.Gateway, upstream.URL)

			_, err := b.Complete(context.Background(), llm.NewChatRequest("deepseek", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(received.URL.Path).To(Equal("/v1/chat/completions"))
			Expect(received.Header.Get("Authorization")).To(Equal("Bearer test-token"))
		})

		It("targets the direct /chat/completions path", func() {
			b := newTestBackend(backend.DeepSeek, upstream.URL)

			_, err := b.Complete(context.Background(), llm.NewChatRequest("deepseek-chat", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(received.URL.Path).To(Equal("/chat/completions"))
		})

		It("sends the generation parameters without a stream flag", func() {
			b := newTestBackend(backend.Gateway, upstream.URL)

			_, err := b.Complete(context.Background(), llm.NewChatRequest("deepseek", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(reqBody["temperature"]).To(BeNumerically("~", 0.7))
			Expect(reqBody["max_tokens"]).To(BeNumerically("==", 2000))
			Expect(reqBody).NotTo(HaveKey("stream"))
		})
	})

	Context("with a failing upstream", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"detail":"rate limited"}`)
			}))
		})

		It("returns a StatusError with status and body", func() {
			b := newTestBackend(backend.Gateway, upstream.URL)

			_, err := b.Complete(context.Background(), llm.NewChatRequest("deepseek", nil))

			var statusErr *backend.StatusError
			Expect(err).To(BeAssignableToTypeOf(statusErr))
			statusErr = err.(*backend.StatusError)
			Expect(statusErr.Status).To(Equal(http.StatusTooManyRequests))
			Expect(statusErr.Body).To(ContainSubstring("rate limited"))
		})
	})
})

var _ = Describe("CompleteStream", func() {
	var upstream *httptest.Server

	AfterEach(func() {
		if upstream != nil {
			upstream.Close()
		}
	})

	Context("with a streaming upstream", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body map[string]any
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body["stream"]).To(BeTrue())

				w.Header().Set("Content-Type", "text/event-stream")
				flusher, ok := w.(http.Flusher)
				Expect(ok).To(BeTrue())

				events := []string{
					"data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n",
					"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"},\"finish_reason\":\"stop\"}]}\n\n",
					"data: [DONE]\n\n",
				}
				for _, event := range events {
					fmt.Fprint(w, event)
					flusher.Flush()
				}
			}))
		})

		It("produces the decoded chunk sequence", func() {
			b := newTestBackend(backend.Gateway, upstream.URL)

			stream, err := b.CompleteStream(context.Background(), llm.NewChatRequest("deepseek", nil))
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			chunk, err := stream.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk.DeltaContent()).To(Equal("He"))

			chunk, err = stream.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk.DeltaContent()).To(Equal("llo"))
			Expect(chunk.FinishReason()).To(Equal("stop"))

			chunk, err = stream.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk).To(BeNil())
		})
	})

	Context("with a slow but active streaming upstream", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				flusher, ok := w.(http.Flusher)
				Expect(ok).To(BeTrue())

				for i := 0; i < 8; i++ {
					fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"c%d\"}}]}\n\n", i)
					flusher.Flush()
					time.Sleep(50 * time.Millisecond)
				}
				fmt.Fprint(w, "data: [DONE]\n\n")
				flusher.Flush()
			}))
		})

		It("keeps reading after the total duration passes the call timeout", func() {
			// Each chunk arrives well inside the timeout, but the full
			// stream takes several times longer than it.
			b, err := backend.New(backend.Config{
				Service: backend.Gateway,
				BaseURL: upstream.URL,
				Token:   "test-token",
				Timeout: 150 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			stream, err := b.CompleteStream(context.Background(), llm.NewChatRequest("deepseek", nil))
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			var chunks int
			for {
				chunk, err := stream.Next()
				Expect(err).NotTo(HaveOccurred())
				if chunk == nil {
					break
				}
				chunks++
			}
			Expect(chunks).To(Equal(8))
		})
	})

	Context("with a failing upstream", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, "upstream down")
			}))
		})

		It("returns a StatusError before any chunks", func() {
			b := newTestBackend(backend.DeepSeek, upstream.URL)

			_, err := b.CompleteStream(context.Background(), llm.NewChatRequest("deepseek-chat", nil))

			var statusErr *backend.StatusError
			Expect(err).To(BeAssignableToTypeOf(statusErr))
			statusErr = err.(*backend.StatusError)
			Expect(statusErr.Status).To(Equal(http.StatusServiceUnavailable))
			Expect(statusErr.Body).To(Equal("upstream down"))
		})
	})

	Context("with an unreachable upstream", func() {
		It("returns a transport error", func() {
			b := newTestBackend(backend.Gateway, "http://127.0.0.1:1")

			_, err := b.CompleteStream(context.Background(), llm.NewChatRequest("deepseek", nil))
			Expect(err).To(MatchError(ContainSubstring("upstream request")))
		})
	})
})
