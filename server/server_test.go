package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/muuya/essence-logic/pkg/config"
	"github.com/muuya/essence-logic/pkg/history"
)

// newTestServer builds a server backed by a temp-dir store, pointed at the
// given upstream. mutate adjusts the config before construction.
func newTestServer(upstreamURL string, mutate func(*config.Config)) (*Server, *history.Store) {
	cfg := config.NewDefaultConfig()
	cfg.AI.Service = "gateway"
	cfg.AI.BaseURL = upstreamURL
	cfg.AI.GatewayToken = "test-token"
	if mutate != nil {
		mutate(cfg)
	}

	store, err := history.NewStore(GinkgoT().TempDir(), zap.NewNop())
	Expect(err).NotTo(HaveOccurred())

	s, err := New(cfg, nil, store, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return s, store
}

func chatBody(content string, stream *bool) string {
	req := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": content}},
	}
	if stream != nil {
		req["stream"] = *stream
	}
	data, err := json.Marshal(req)
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}

func postChat(s *Server, path, body string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func boolPtr(b bool) *bool { return &b }

var _ = Describe("POST /api/chat", func() {
	var (
		s        *Server
		store    *history.Store
		upstream *httptest.Server
	)

	AfterEach(func() {
		if s != nil {
			s.Close()
			s = nil
		}
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	Context("streaming against an SSE upstream", func() {
		var (
			mu           sync.Mutex
			upstreamBody []byte
			upstreamAuth string
		)

		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				mu.Lock()
				upstreamBody = body
				upstreamAuth = r.Header.Get("Authorization")
				mu.Unlock()

				w.Header().Set("Content-Type", "text/event-stream")
				flusher, ok := w.(http.Flusher)
				Expect(ok).To(BeTrue())

				events := []string{
					"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"He\"}}]}\n\n",
					"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n",
					"data: [DONE]\n\n",
				}
				for _, event := range events {
					fmt.Fprint(w, event)
					flusher.Flush()
				}
			}))
			s, store = newTestServer(upstream.URL, nil)
		})

		It("emits one frame per delta and a single done frame", func() {
			resp := postChat(s, "/api/chat", chatBody("hi", nil))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache, no-transform"))
			Expect(resp.Header.Get("X-Accel-Buffering")).To(Equal("no"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(
				"data: {\"content\":\"He\",\"done\":false}\n\n" +
					"data: {\"content\":\"llo\",\"done\":false}\n\n" +
					"data: {\"content\":\"\",\"done\":true}\n\n"))
		})

		It("prepends the system prompt and authorizes the upstream call", func() {
			resp := postChat(s, "/api/chat", chatBody("hi", nil))
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			mu.Lock()
			defer mu.Unlock()
			Expect(upstreamAuth).To(Equal("Bearer test-token"))

			var sent struct {
				Model    string `json:"model"`
				Stream   bool   `json:"stream"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			Expect(json.Unmarshal(upstreamBody, &sent)).To(Succeed())
			Expect(sent.Stream).To(BeTrue())
			// Gateway alias: deepseek-chat maps to deepseek.
			Expect(sent.Model).To(Equal("deepseek"))
			Expect(sent.Messages).To(HaveLen(2))
			Expect(sent.Messages[0].Role).To(Equal("system"))
			Expect(sent.Messages[0].Content).NotTo(BeEmpty())
			Expect(sent.Messages[1].Content).To(Equal("hi"))
		})

		It("records the reassembled exchange once the pool drains", func() {
			resp := postChat(s, "/api/chat", chatBody("hi", nil))
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			s.Close()
			s = nil

			page, err := store.ListChats(10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(1))
			Expect(page.Records[0].UserMessage).To(Equal("hi"))
			Expect(page.Records[0].AssistantMessage).To(Equal("Hello"))
			Expect(page.Records[0].MessageCount).To(Equal(1))
		})
	})

	Context("streaming when the upstream rejects the request", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, "overloaded")
			}))
			s, store = newTestServer(upstream.URL, nil)
		})

		It("emits exactly one error terminal frame and persists nothing", func() {
			resp := postChat(s, "/api/chat", chatBody("hi", nil))
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			frames := strings.Split(strings.TrimSuffix(string(body), "\n\n"), "\n\n")
			Expect(frames).To(HaveLen(1))
			Expect(frames[0]).To(HavePrefix("data: "))
			Expect(frames[0]).To(ContainSubstring(`"error"`))
			Expect(frames[0]).To(ContainSubstring(`"done":true`))

			s.Close()
			s = nil
			page, err := store.ListChats(10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(0))
		})
	})

	Context("non-streaming", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"X"}}],"model":"m"}`)
			}))
			s, store = newTestServer(upstream.URL, nil)
		})

		It("returns the assistant envelope", func() {
			resp := postChat(s, "/api/chat", chatBody("hi", boolPtr(false)))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out struct {
				Message struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"message"`
				Model string `json:"model"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Message.Role).To(Equal("assistant"))
			Expect(out.Message.Content).To(Equal("X"))
			Expect(out.Model).To(Equal("m"))
		})

		It("lets the stream query parameter override the body flag", func() {
			resp := postChat(s, "/api/chat?stream=false", chatBody("hi", boolPtr(true)))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
		})

		It("records the exchange", func() {
			resp := postChat(s, "/api/chat", chatBody("hi", boolPtr(false)))
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			s.Close()
			s = nil
			page, err := store.ListChats(10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(1))
			Expect(page.Records[0].AssistantMessage).To(Equal("X"))
		})
	})

	Context("request validation", func() {
		BeforeEach(func() {
			s, store = newTestServer("http://localhost:1", nil)
		})

		It("rejects an unparseable body", func() {
			resp := postChat(s, "/api/chat", "{not json")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an empty message list", func() {
			resp := postChat(s, "/api/chat", `{"messages":[]}`)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Context("without a configured credential", func() {
		BeforeEach(func() {
			s, store = newTestServer("", func(cfg *config.Config) {
				cfg.AI.GatewayToken = ""
			})
		})

		It("returns 503 naming the missing credential", func() {
			resp := postChat(s, "/api/chat", chatBody("hi", nil))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))

			var out struct {
				Detail string `json:"detail"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Detail).To(ContainSubstring("AI_BUILDER_TOKEN"))
		})
	})
})

var _ = Describe("service endpoints", func() {
	var (
		s     *Server
		store *history.Store
	)

	get := func(path string, header map[string]string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for k, v := range header {
			req.Header.Set(k, v)
		}
		resp, err := s.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	AfterEach(func() {
		if s != nil {
			s.Close()
			s = nil
		}
	})

	Describe("GET /health", func() {
		It("reports configuration state", func() {
			s, store = newTestServer("http://localhost:1", nil)

			resp := get("/health", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out struct {
				Status           string `json:"status"`
				ClientConfigured bool   `json:"client_configured"`
				AIService        string `json:"ai_service"`
				Environment      string `json:"environment"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Status).To(Equal("healthy"))
			Expect(out.ClientConfigured).To(BeTrue())
			Expect(out.AIService).To(Equal("gateway"))
			Expect(out.Environment).To(Equal("production"))
		})
	})

	Describe("GET /", func() {
		It("describes the service", func() {
			s, store = newTestServer("http://localhost:1", nil)

			resp := get("/", nil)
			defer resp.Body.Close()

			var out struct {
				Name    string `json:"name"`
				Version string `json:"version"`
				Status  string `json:"status"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Name).NotTo(BeEmpty())
			Expect(out.Version).To(Equal("4.0.0"))
			Expect(out.Status).To(Equal("running"))
		})
	})

	Describe("POST /api/feedback", func() {
		BeforeEach(func() {
			s, store = newTestServer("http://localhost:1", nil)
		})

		It("rejects invalid feedback types", func() {
			resp := postChat(s, "/api/feedback", `{"message_id":"m1","feedback_type":"vibes","rating":3}`)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("records valid feedback", func() {
			resp := postChat(s, "/api/feedback", `{"message_id":"m1","feedback_type":"mapping_accuracy","rating":5,"comment":"good"}`)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			stats, err := store.FeedbackStats()
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalFeedbacks).To(Equal(1))
		})
	})

	Describe("POST /api/scenario", func() {
		BeforeEach(func() {
			s, store = newTestServer("http://localhost:1", nil)
		})

		It("records valid scenarios", func() {
			resp := postChat(s, "/api/scenario", `{"scenario":"decision_before"}`)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			stats, err := store.FeedbackStats()
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Scenarios.DecisionBefore).To(Equal(1))
		})

		It("rejects unknown scenarios", func() {
			resp := postChat(s, "/api/scenario", `{"scenario":"midnight"}`)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/feedback/stats", func() {
		It("is forbidden in production", func() {
			s, store = newTestServer("http://localhost:1", nil)

			resp := get("/api/feedback/stats", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("returns aggregates in development", func() {
			s, store = newTestServer("http://localhost:1", func(cfg *config.Config) {
				cfg.Server.Environment = config.EnvDevelopment
			})

			resp := get("/api/feedback/stats", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/reload-config", func() {
		It("is forbidden in production", func() {
			s, store = newTestServer("http://localhost:1", nil)

			resp := postChat(s, "/api/reload-config", "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("swaps in the configuration the loader resolves", func() {
			cfg := config.NewDefaultConfig()
			cfg.Server.Environment = config.EnvDevelopment
			cfg.AI.Service = "gateway"
			cfg.AI.GatewayToken = "test-token"

			fresh := config.NewDefaultConfig()
			fresh.Server.Environment = config.EnvDevelopment
			fresh.AI.Service = "deepseek"
			fresh.AI.DeepSeekToken = "other-token"

			var err error
			store, err = history.NewStore(GinkgoT().TempDir(), zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			loader := func() (*config.Config, error) { return fresh, nil }
			s, err = New(cfg, loader, store, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			resp := postChat(s, "/api/reload-config", "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(s.snapshot().AI.Service).To(Equal("deepseek"))
		})

		It("reloads in development", func() {
			s, store = newTestServer("http://localhost:1", func(cfg *config.Config) {
				cfg.Server.Environment = config.EnvDevelopment
			})

			resp := postChat(s, "/api/reload-config", "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out struct {
				Status string `json:"status"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Status).To(Equal("success"))
		})
	})

	Describe("GET /api/chat/history", func() {
		seed := func() {
			Expect(store.RecordChat("q", "a", "ip", 1)).To(Succeed())
		}

		It("requires a configured admin token in production", func() {
			s, store = newTestServer("http://localhost:1", nil)
			seed()

			resp := get("/api/chat/history", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("rejects a wrong token", func() {
			s, store = newTestServer("http://localhost:1", func(cfg *config.Config) {
				cfg.Server.AdminToken = "secret"
			})
			seed()

			resp := get("/api/chat/history?token=nope", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("accepts the token via header", func() {
			s, store = newTestServer("http://localhost:1", func(cfg *config.Config) {
				cfg.Server.AdminToken = "secret"
			})
			seed()

			resp := get("/api/chat/history", map[string]string{"X-Admin-Token": "secret"})
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var page history.Page
			Expect(json.NewDecoder(resp.Body).Decode(&page)).To(Succeed())
			Expect(page.Total).To(Equal(1))
			Expect(page.Records[0].AssistantMessage).To(Equal("a"))
		})

		It("accepts the token via query parameter", func() {
			s, store = newTestServer("http://localhost:1", func(cfg *config.Config) {
				cfg.Server.AdminToken = "secret"
			})
			seed()

			resp := get("/api/chat/history?token=secret", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("needs no token in development", func() {
			s, store = newTestServer("http://localhost:1", func(cfg *config.Config) {
				cfg.Server.Environment = config.EnvDevelopment
			})
			seed()

			resp := get("/api/chat/history", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
