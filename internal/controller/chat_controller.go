package controller

import (
	"bufio"
	"context"
	"errors"
	"time"

	"dermascan-be/internal/dto"
	"dermascan-be/internal/pkg/logger"
	"dermascan-be/internal/pkg/serverutils"
	"dermascan-be/internal/service"
	"dermascan-be/pkg/sse"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const streamInterruptedMessage = "AI response was interrupted"

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	DermaChat(ctx *fiber.Ctx) error
}

type chatController struct {
	service   service.IChatService
	jwtSecret string
	timeout   time.Duration
	logger    logger.ILogger
}

// NewChatController bounds every reply by timeout, measured from the request.
func NewChatController(service service.IChatService, jwtSecret string, timeout time.Duration, log logger.ILogger) IChatController {
	return &chatController{
		service:   service,
		jwtSecret: jwtSecret,
		timeout:   timeout,
		logger:    log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Post("/functions/v1/derma-chat", serverutils.JwtMiddleware(c.jwtSecret), c.DermaChat)
}

// DermaChat relays the model reply as server-sent events. Failures before the
// first byte are ordinary JSON errors; later ones are sent in-band.
func (c *chatController) DermaChat(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.DermaChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// The body writer outlives the handler, so the fiber context cannot carry it.
	streamCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	stream, err := c.service.Stream(streamCtx, userId, &req)
	if err != nil {
		cancel()
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer stream.Close()

		chunks := 0
		for stream.Next() {
			if err := sse.WriteData(w, sse.EncodeDelta(stream.Text())); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				c.logger.Info("CHAT", "Client disconnected mid-stream", map[string]interface{}{
					"user_id": userId.String(),
					"chunks":  chunks,
				})
				return
			}
			chunks++
		}

		if err := stream.Err(); err != nil {
			c.logger.Error("CHAT", "Chat stream failed", map[string]interface{}{
				"user_id": userId.String(),
				"chunks":  chunks,
				"error":   err.Error(),
			})
			_ = sse.WriteData(w, sse.EncodeError(inBandMessage(err)))
			_ = w.Flush()
			return
		}

		_ = sse.WriteDone(w)
		_ = w.Flush()
	}))

	return nil
}

func inBandMessage(err error) string {
	var streamErr *sse.StreamError
	if errors.As(err, &streamErr) && streamErr.Message != "" {
		return streamErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "AI response timed out"
	}
	return streamInterruptedMessage
}
