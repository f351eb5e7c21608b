package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/jeovahfialho/tradejournal/internal/domain"
)

// columnAliases maps accepted header names to RawTrade fields. Headers are
// matched case-insensitively after trimming.
var columnAliases = map[string]string{
	"market":      "market",
	"symbol":      "symbol",
	"ticker":      "symbol",
	"instrument":  "symbol",
	"direction":   "direction",
	"side":        "direction",
	"entry_time":  "entry_time",
	"open_time":   "entry_time",
	"exit_time":   "exit_time",
	"close_time":  "exit_time",
	"entry_price": "entry_price",
	"entry":       "entry_price",
	"exit_price":  "exit_price",
	"exit":        "exit_price",
	"size":        "size",
	"qty":         "size",
	"quantity":    "size",
	"units":       "size",
	"fees":        "fees",
	"commission":  "fees",
	"pnl":         "pnl",
	"realized_pl": "pnl",
	"r_multiple":  "r_multiple",
	"r":           "r_multiple",
	"setup":       "setup",
	"tags":        "tags",
	"notes":       "notes",
	"mood":        "mood",
	"sleep_hours": "sleep_hours",
	"rule_breaks": "rule_breaks",
}

type Parser struct {
	batchSize int
	workers   int
	comma     rune
}

func NewParser(batchSize, workers int) *Parser {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 100
	}
	return &Parser{
		batchSize: batchSize,
		workers:   workers,
		comma:     ',',
	}
}

// WithComma sets the field delimiter, e.g. ';' for spreadsheet exports.
func (p *Parser) WithComma(r rune) *Parser {
	p.comma = r
	return p
}

// Row is one normalized CSV line; Line is 1-based and counts the header.
type Row struct {
	Line  int
	Trade *domain.Trade
}

// ParseResult holds the accepted rows and one *LineError per skipped line,
// both in file order.
type ParseResult struct {
	Rows   []Row
	Errors []error
}

// LineError reports why a CSV line was skipped.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

type record struct {
	line   int
	fields []string
	err    error
}

// ParseFile reads a header row and normalizes every following line on a
// pool of workers. Rows come back in file order; lines that fail
// normalization are reported in Errors and skipped.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) (*ParseResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = p.comma
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err == io.EOF {
		return &ParseResult{Rows: []Row{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	jobs := make(chan record, p.workers*2)
	results := make(chan *ParseResult, p.workers)

	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, columns, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)

		line := 1
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			fields, err := csvReader.Read()
			if err == io.EOF {
				return
			}
			line++

			select {
			case jobs <- record{line: line, fields: fields, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	finalResult := &ParseResult{
		Rows:   make([]Row, 0, p.batchSize),
		Errors: make([]error, 0),
	}

	for result := range results {
		finalResult.Rows = append(finalResult.Rows, result.Rows...)
		finalResult.Errors = append(finalResult.Errors, result.Errors...)
	}

	sort.Slice(finalResult.Rows, func(i, j int) bool {
		return finalResult.Rows[i].Line < finalResult.Rows[j].Line
	})
	sort.SliceStable(finalResult.Errors, func(i, j int) bool {
		return errorLine(finalResult.Errors[i]) < errorLine(finalResult.Errors[j])
	})

	if err := ctx.Err(); err != nil {
		return finalResult, err
	}

	return finalResult, nil
}

func (p *Parser) worker(ctx context.Context, columns map[int]string, jobs <-chan record,
	results chan<- *ParseResult, wg *sync.WaitGroup) {

	defer wg.Done()

	batch := &ParseResult{
		Rows: make([]Row, 0, p.batchSize),
	}

	for {
		select {
		case <-ctx.Done():
			if len(batch.Rows) > 0 || len(batch.Errors) > 0 {
				results <- batch
			}
			return

		case rec, ok := <-jobs:
			if !ok {
				if len(batch.Rows) > 0 || len(batch.Errors) > 0 {
					results <- batch
				}
				return
			}

			if rec.err != nil {
				batch.Errors = append(batch.Errors, &LineError{Line: rec.line, Err: rec.err})
				continue
			}

			trade, err := parseRecord(columns, rec.fields)
			if err != nil {
				batch.Errors = append(batch.Errors, &LineError{Line: rec.line, Err: err})
				continue
			}

			batch.Rows = append(batch.Rows, Row{Line: rec.line, Trade: trade})

			if len(batch.Rows) >= p.batchSize {
				results <- batch
				batch = &ParseResult{
					Rows: make([]Row, 0, p.batchSize),
				}
			}
		}
	}
}

func errorLine(err error) int {
	var le *LineError
	if errors.As(err, &le) {
		return le.Line
	}
	return 0
}

func mapHeader(header []string) (map[int]string, error) {
	columns := make(map[int]string, len(header))
	hasSymbol := false

	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		field, ok := columnAliases[name]
		if !ok {
			continue
		}
		columns[i] = field
		if field == "symbol" {
			hasSymbol = true
		}
	}

	if !hasSymbol {
		return nil, errors.New("header has no symbol column")
	}
	return columns, nil
}

func parseRecord(columns map[int]string, fields []string) (*domain.Trade, error) {
	var raw domain.RawTrade

	for i, value := range fields {
		field, ok := columns[i]
		if !ok {
			continue
		}
		switch field {
		case "market":
			raw.Market = value
		case "symbol":
			raw.Symbol = value
		case "direction":
			raw.Direction = normalizeSide(value)
		case "entry_time":
			raw.EntryTime = value
		case "exit_time":
			raw.ExitTime = value
		case "entry_price":
			raw.EntryPrice = value
		case "exit_price":
			raw.ExitPrice = value
		case "size":
			raw.Size = value
		case "fees":
			raw.Fees = value
		case "pnl":
			raw.PnL = value
		case "r_multiple":
			raw.RMultiple = value
		case "setup":
			raw.Setup = value
		case "tags":
			raw.Tags = value
		case "notes":
			raw.Notes = value
		case "mood":
			raw.Mood = value
		case "sleep_hours":
			raw.SleepHours = value
		case "rule_breaks":
			raw.RuleBreaks = value
		}
	}

	return domain.Normalize(raw)
}

// normalizeSide accepts broker style buy/sell next to long/short.
func normalizeSide(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "buy", "b":
		return string(domain.DirectionLong)
	case "sell", "s", "sell short":
		return string(domain.DirectionShort)
	}
	return v
}
