package api

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/jeovahfialho/tradejournal/internal/auth"
	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	localRequestID = "requestID"
	localOwner     = "owner"
)

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_duration_seconds",
		Help: "Duration of HTTP requests.",
	}, []string{"method", "route", "status_code"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "route", "status_code"})
)

func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := c.Response().StatusCode()
		if err != nil {
			// ErrorHandler has not written the response yet.
			status, _, _ = classify(err)
		}

		httpDuration.WithLabelValues(
			c.Method(),
			c.Route().Path,
			fmt.Sprintf("%d", status),
		).Observe(duration)

		httpRequests.WithLabelValues(
			c.Method(),
			c.Route().Path,
			fmt.Sprintf("%d", status),
		).Inc()

		return err
	}
}

// RateLimiter allows max requests per minute for each owner, falling back
// to the client IP before authentication has run.
func RateLimiter(max int) fiber.Handler {
	if max <= 0 {
		max = 100
	}
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			if owner, ok := c.Locals(localOwner).(domain.Owner); ok {
				return "owner:" + owner.String()
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:     "too many requests",
				Code:      fiber.StatusTooManyRequests,
				RequestID: getRequestID(c),
				Timestamp: time.Now(),
			})
		},
	})
}

// ErrorHandler turns handler errors into JSON error responses.
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		code, kind, message := classify(err)
		if code >= fiber.StatusInternalServerError {
			logger.WithContext(c.UserContext()).Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err))
		}

		return c.Status(code).JSON(ErrorResponse{
			Error:     message,
			Kind:      kind,
			Code:      code,
			RequestID: getRequestID(c),
			Timestamp: time.Now(),
		})
	}
}

// classify maps an error onto a status code, an error kind and a message
// safe to show to the caller.
func classify(err error) (int, string, string) {
	var (
		fe  *fiber.Error
		ve  *domain.ValidationError
		se  *domain.StorageError
		pe  *domain.PersistenceError
		ae  *domain.AttachmentError
		msg = err.Error()
	)

	if errors.As(err, &ae) {
		msg = fmt.Sprintf("attachment %d (%s) failed", ae.Index, ae.FileName)
	}

	switch {
	case errors.As(err, &fe):
		return fe.Code, "", fe.Message
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, "validation", ve.Error()
	case errors.Is(err, domain.ErrMissingOwner),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		return fiber.StatusUnauthorized, "auth", "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "not_found", "not found"
	case errors.As(err, &se):
		return fiber.StatusBadGateway, "storage", msg
	case errors.As(err, &pe):
		return fiber.StatusInternalServerError, "persistence", "failed to persist " + pe.Op
	}
	return fiber.StatusInternalServerError, "", "internal server error"
}

// RequestID tags the request and its context logger with an id.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		c.Set("X-Request-ID", requestID)
		c.Locals(localRequestID, requestID)
		c.SetUserContext(logger.WithRequestID(c.UserContext(), requestID))

		return c.Next()
	}
}

// OwnerAuth resolves the bearer token to the owner every journal call is
// scoped to.
func OwnerAuth(tokens auth.JWT) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.FromHeader(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}

		owner, err := tokens.Verify(token)
		if err != nil {
			logger.WithContext(c.UserContext()).Debug("rejected token", zap.Error(err))
			return auth.ErrInvalidToken
		}

		c.Locals(localOwner, owner)
		return c.Next()
	}
}

func ownerFrom(c *fiber.Ctx) domain.Owner {
	owner, _ := c.Locals(localOwner).(domain.Owner)
	return owner
}

func generateRequestID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), randomString(8))
}

func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localRequestID).(string); ok {
		return id
	}
	return ""
}
