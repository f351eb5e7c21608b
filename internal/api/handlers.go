package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/internal/service"
	"github.com/jeovahfialho/tradejournal/internal/storage/objects"
	"github.com/jeovahfialho/tradejournal/pkg/logger"
	"go.uber.org/zap"
)

const screenshotsField = "screenshots"

// Checker is anything the readiness probe can ping.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

type Handler struct {
	trades    *service.TradeService
	ingestion *service.IngestionService
	files     *objects.FSStore
	checks    map[string]Checker
	version   string
}

// NewHandler wires the journal services. files may be nil when attachments
// live in an S3 bucket that signs its own links.
func NewHandler(
	trades *service.TradeService,
	ingestion *service.IngestionService,
	files *objects.FSStore,
	checks map[string]Checker,
	version string,
) *Handler {
	return &Handler{
		trades:    trades,
		ingestion: ingestion,
		files:     files,
		checks:    checks,
		version:   version,
	}
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := make(map[string]ServiceHealth, len(h.checks))
	status := "ready"

	for name, check := range h.checks {
		start := time.Now()
		if err := check.HealthCheck(ctx); err != nil {
			services[name] = ServiceHealth{
				Status: "unhealthy",
				Error:  err.Error(),
			}
			status = "not_ready"
			continue
		}
		services[name] = ServiceHealth{
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
	}

	response := HealthResponse{
		Status:    status,
		Version:   h.version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}

// CreateTrade accepts the entry form either as JSON or as multipart form
// fields with screenshot files.
func (h *Handler) CreateTrade(c *fiber.Ctx) error {
	var raw domain.RawTrade
	if err := c.BodyParser(&raw); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	uploads, err := readUploads(c)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	result, err := h.trades.Save(ctx, ownerFrom(c), raw, uploads)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(SaveTradeResponse{
		ID:          result.Trade.ID,
		Trade:       result.Trade,
		Attachments: result.Attachments,
		UploadError: uploadError(result.UploadErr),
	})
}

func (h *Handler) ListTrades(c *fiber.Ctx) error {
	trades, err := h.trades.List(c.UserContext(), ownerFrom(c), c.QueryInt("limit", 100))
	if err != nil {
		return err
	}

	return c.JSON(TradeListResponse{
		Trades: trades,
		Count:  len(trades),
	})
}

func (h *Handler) GetTrade(c *fiber.Ctx) error {
	detail, err := h.trades.Get(c.UserContext(), ownerFrom(c), c.Params("id"), ttlFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

func (h *Handler) UpdateTrade(c *fiber.Ctx) error {
	var raw domain.RawTrade
	if err := c.BodyParser(&raw); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	trade, err := h.trades.Update(c.UserContext(), ownerFrom(c), c.Params("id"), raw)
	if err != nil {
		return err
	}
	return c.JSON(trade)
}

func (h *Handler) DeleteTrade(c *fiber.Ctx) error {
	if err := h.trades.Delete(c.UserContext(), ownerFrom(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadAttachments adds screenshots to an existing trade. If the first
// file already fails the request fails; a later failure is reported next to
// the files that were stored.
func (h *Handler) UploadAttachments(c *fiber.Ctx) error {
	uploads, err := readUploads(c)
	if err != nil {
		return err
	}
	if len(uploads) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no files in field "+screenshotsField)
	}

	stored, uploadErr := h.trades.Attach(c.UserContext(), ownerFrom(c), c.Params("id"), uploads)
	if uploadErr != nil && len(stored) == 0 {
		return uploadErr
	}

	return c.Status(fiber.StatusCreated).JSON(SaveTradeResponse{
		ID:          c.Params("id"),
		Attachments: stored,
		UploadError: uploadError(uploadErr),
	})
}

func (h *Handler) ListAttachments(c *fiber.Ctx) error {
	detail, err := h.trades.Get(c.UserContext(), ownerFrom(c), c.Params("id"), ttlFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(AttachmentListResponse{
		Attachments: detail.Attachments,
		Count:       len(detail.Attachments),
	})
}

func (h *Handler) Summary(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", domain.DefaultSummaryWindow)

	summary, err := h.trades.Summary(c.UserContext(), ownerFrom(c), limit)
	if err != nil {
		return err
	}

	return c.JSON(SummaryResponse{
		Summary: *summary,
		Window:  limit,
	})
}

func (h *Handler) Estimate(c *fiber.Ctx) error {
	var raw domain.RawTrade
	if err := c.BodyParser(&raw); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	pnl, err := h.trades.Estimate(raw)
	if err != nil {
		return err
	}
	return c.JSON(EstimateResponse{PnL: pnl})
}

// ImportTrades loads a journal CSV sent as the "file" form field.
func (h *Handler) ImportTrades(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable file")
	}
	defer f.Close()

	result, err := h.ingestion.Import(c.UserContext(), ownerFrom(c), fh.Filename, f)
	if result == nil {
		if err == nil {
			err = errors.New("import produced no result")
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	response := ImportResponse{
		FileName:     result.FileName,
		RecordsCount: result.RecordsCount,
		Skipped:      result.Errors,
		Status:       "completed",
	}
	if err != nil {
		response.Status = "partial"
		response.Error = err.Error()
		logger.WithContext(c.UserContext()).Warn("import stopped",
			zap.String("file", fh.Filename),
			zap.Int64("records", result.RecordsCount),
			zap.Error(err))
	}

	return c.JSON(response)
}

// ServeFile streams an object of the filesystem bucket to holders of a
// valid signed link.
func (h *Handler) ServeFile(c *fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	if err := h.files.VerifyToken(key, c.Query("token")); err != nil {
		return fiber.NewError(fiber.StatusForbidden, "invalid or expired link")
	}

	f, err := h.files.Open(key)
	if err != nil {
		return err
	}

	c.Type(filepath.Ext(key))
	c.Set(fiber.HeaderCacheControl, "private, no-store")
	return c.SendStream(f)
}

func readUploads(c *fiber.Ctx) ([]domain.Upload, error) {
	// JSON bodies carry no files.
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid multipart form")
	}

	files := form.File[screenshotsField]
	uploads := make([]domain.Upload, 0, len(files))

	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable file "+fh.Filename)
		}
		uploads = append(uploads, domain.Upload{FileName: fh.Filename, Data: data})
	}

	return uploads, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func uploadError(err *domain.AttachmentError) *UploadError {
	if err == nil {
		return nil
	}

	kind := "persistence"
	switch {
	case domain.IsStorage(err):
		kind = "storage"
	case errors.Is(err, domain.ErrNotFound):
		kind = "not_found"
	}

	return &UploadError{
		Index:    err.Index,
		FileName: err.FileName,
		Kind:     kind,
		Error:    err.Err.Error(),
	}
}

// ttlFrom reads the optional ttl query in seconds. Zero leaves the link
// lifetime to the attachment manager.
func ttlFrom(c *fiber.Ctx) time.Duration {
	if secs := c.QueryInt("ttl", 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
