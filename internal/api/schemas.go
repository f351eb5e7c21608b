package api

import (
	"time"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/shopspring/decimal"
)

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Kind      string    `json:"kind,omitempty"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UploadError describes the file that stopped a multi-file upload.
type UploadError struct {
	Index    int    `json:"index"`
	FileName string `json:"file_name"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

type SaveTradeResponse struct {
	ID          string              `json:"id"`
	Trade       *domain.Trade       `json:"trade,omitempty"`
	Attachments []domain.Attachment `json:"attachments"`
	UploadError *UploadError        `json:"upload_error,omitempty"`
}

type TradeListResponse struct {
	Trades []domain.Trade `json:"trades"`
	Count  int            `json:"count"`
}

type AttachmentListResponse struct {
	Attachments []domain.AttachmentView `json:"attachments"`
	Count       int                     `json:"count"`
}

type SummaryResponse struct {
	domain.Summary
	Window int `json:"window"`
}

type EstimateResponse struct {
	PnL decimal.NullDecimal `json:"pnl"`
}

type ImportResponse struct {
	FileName     string   `json:"file_name"`
	RecordsCount int64    `json:"records_count"`
	Skipped      []string `json:"skipped"`
	Status       string   `json:"status"`
	Error        string   `json:"error,omitempty"`
}
