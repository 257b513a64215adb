package server

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/muuya/essence-logic/pkg/llm"
	"github.com/muuya/essence-logic/pkg/llm/backend"
	"github.com/muuya/essence-logic/pkg/prompt"
	"github.com/muuya/essence-logic/pkg/relay"
	"github.com/muuya/essence-logic/pkg/utils"
)

// userSummaryLimit caps the persisted user message preview, in characters.
const userSummaryLimit = 100

// chatRequest is the inbound chat payload.
type chatRequest struct {
	Messages []llm.Message `json:"messages"`
	Model    string        `json:"model"`
	Stream   *bool         `json:"stream"`
}

// chatResponse is the non-streaming envelope.
type chatResponse struct {
	Message llm.Message `json:"message"`
	Model   string      `json:"model"`
}

// handleChat relays one conversation turn to the configured backend. The
// system prompt is always prepended; the `stream` query parameter overrides
// the body flag, which defaults to streaming.
func (s *Server) handleChat(c *fiber.Ctx) error {
	start := time.Now()
	clientIP := c.IP()

	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return detail(c, fiber.StatusBadRequest, "messages must not be empty")
	}

	cfg := s.snapshot()

	be, err := s.currentBackend()
	if err != nil {
		s.logger.Error("backend not configured", zap.Error(err))
		return detail(c, fiber.StatusServiceUnavailable, unconfiguredDetail(cfg.AI.Service))
	}

	streaming := true
	if req.Stream != nil {
		streaming = *req.Stream
	}
	if qp := c.Query("stream"); qp != "" {
		streaming = strings.EqualFold(qp, "true")
	}

	model := req.Model
	if model == "" {
		model = cfg.AI.Model
	}
	normalized := be.NormalizeModel(model)
	if normalized != model {
		s.logger.Debug("model name normalized",
			zap.String("from", model),
			zap.String("to", normalized),
		)
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.NewMessage(llm.RoleSystem, prompt.System))
	messages = append(messages, req.Messages...)

	upstreamReq := llm.NewChatRequest(normalized, messages)

	params := relay.Params{
		UserMessage:  userSummary(req.Messages),
		ClientIP:     clientIP,
		MessageCount: len(req.Messages),
	}

	s.logger.Info("chat request",
		zap.String("ip", clientIP),
		zap.Int("message_count", params.MessageCount),
		zap.String("service", be.Name()),
		zap.String("model", normalized),
		zap.Bool("stream", streaming),
	)

	if streaming {
		return s.handleChatStream(c, be, upstreamReq, params, start)
	}

	return s.handleChatOnce(c, be, upstreamReq, params, model, start)
}

// handleChatOnce serves the non-streaming path: one upstream round trip, one
// JSON envelope back.
func (s *Server) handleChatOnce(c *fiber.Ctx, be backend.Backend, req *llm.ChatRequest, params relay.Params, requestedModel string, start time.Time) error {
	resp, err := be.Complete(c.Context(), req)
	if err != nil {
		s.logger.Error("chat request failed",
			zap.String("ip", params.ClientIP),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return detail(c, fiber.StatusInternalServerError, "chat request failed: "+err.Error())
	}

	content := resp.Text()
	s.logger.Info("chat response complete",
		zap.String("ip", params.ClientIP),
		zap.Int("content_length", utf8.RuneCountInString(content)),
		zap.Duration("duration", time.Since(start)),
	)

	if content != "" {
		// Queue failures are logged by the pool; the caller already has
		// its response either way.
		_ = s.pool.Record(params.UserMessage, content, params.ClientIP, params.MessageCount)
	}

	model := resp.Model
	if model == "" {
		model = requestedModel
	}

	return c.JSON(chatResponse{
		Message: llm.NewMessage(llm.RoleAssistant, content),
		Model:   model,
	})
}

// handleChatStream serves the streaming path. The upstream call and the
// relay run on the pipe writer side; fasthttp consumes the reader, which
// gives per-frame flushing with backpressure.
func (s *Server) handleChatStream(c *fiber.Ctx, be backend.Backend, req *llm.ChatRequest, params relay.Params, start time.Time) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache, no-transform")
	c.Set(fiber.HeaderContentEncoding, "identity")
	// Disable proxy-side buffering so frames reach the client as written.
	c.Set("X-Accel-Buffering", "no")

	pr, pw := io.Pipe()
	go s.streamToPipe(pw, be, req, params, start)

	// Unknown size (-1) triggers chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// streamToPipe drives one upstream stream through the relay into the pipe.
// The upstream request uses context.Background() because fasthttp recycles
// its RequestCtx after the handler returns while this goroutine is still
// running; a caller disconnect surfaces as a pipe write error instead.
func (s *Server) streamToPipe(pw *io.PipeWriter, be backend.Backend, req *llm.ChatRequest, params relay.Params, start time.Time) {
	defer pw.Close()

	stream, err := be.CompleteStream(context.Background(), req)
	if err != nil {
		s.logger.Error("upstream stream failed to start",
			zap.String("ip", params.ClientIP),
			zap.Error(err),
		)
		s.relay.Fail(pw, err)
		return
	}
	defer stream.Close()

	res := s.relay.Run(stream, pw, params)
	if res.Err != nil {
		s.logger.Error("streaming response failed",
			zap.String("ip", params.ClientIP),
			zap.Duration("duration", time.Since(start)),
			zap.Error(res.Err),
		)
		return
	}

	s.logger.Info("streaming response complete",
		zap.String("ip", params.ClientIP),
		zap.Duration("duration", time.Since(start)),
		zap.Int("chunks", res.Chunks),
		zap.Int("content_length", res.ContentLen),
	)
}

// userSummary returns the last user message truncated for the chat log.
func userSummary(messages []llm.Message) string {
	if len(messages) == 0 {
		return ""
	}

	last := messages[len(messages)-1]
	if last.Role != llm.RoleUser {
		return ""
	}

	return utils.Truncate(last.Content, userSummaryLimit)
}

// unconfiguredDetail names the credential the operator needs to set for the
// active service.
func unconfiguredDetail(service string) string {
	if service == backend.DeepSeek {
		return "AI client not configured, set the DEEPSEEK_API_KEY environment variable"
	}
	return "AI client not configured, set the AI_BUILDER_TOKEN environment variable"
}
