package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileKeepsOrder(t *testing.T) {
	t.Parallel()

	parser := NewParser(3, 4)
	result, err := parser.ParseFile(context.Background(), strings.NewReader(generateTestCSV(50)))
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, result.Rows, 50)

	for i, row := range result.Rows {
		assert.Equal(t, i+2, row.Line)
	}
	assert.Equal(t, "BTCUSDT", result.Rows[0].Trade.Symbol)
	assert.Equal(t, domain.DirectionShort, result.Rows[1].Trade.Direction)
}

func TestParseFileMapsColumns(t *testing.T) {
	t.Parallel()

	csv := "\ufeffTicker,Side,Open_Time,Entry,Exit,Qty,Commission,Tags,Notes,Mood,Setup\n" +
		`EURUSD,SELL,2024-03-01T10:15,1.1050,1.1000,10000,2.5,"A+, news",faded the open,4,Fade` + "\n"

	result, err := NewParser(10, 1).ParseFile(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	tr := result.Rows[0].Trade
	assert.Equal(t, "EURUSD", tr.Symbol)
	assert.Equal(t, domain.DirectionShort, tr.Direction)
	assert.Equal(t, domain.DefaultMarket, tr.Market)
	require.NotNil(t, tr.EntryTime)
	assert.Equal(t, 10, tr.EntryTime.Hour())
	assert.Equal(t, "47.5", tr.PnL.Decimal.String())
	assert.Equal(t, []string{"A+", "news"}, tr.Tags)
	require.NotNil(t, tr.Mood)
	assert.Equal(t, 4, *tr.Mood)
	require.NotNil(t, tr.Setup)
	assert.Equal(t, "Fade", *tr.Setup)
}

func TestParseFileReportsBadLines(t *testing.T) {
	t.Parallel()

	csv := "symbol;direction;pnl\nES;long;10\n;long;5\nNQ;sideways;1\nCL;short;-3\n"

	result, err := NewParser(10, 2).WithComma(';').ParseFile(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, "ES", result.Rows[0].Trade.Symbol)
	assert.Equal(t, "CL", result.Rows[1].Trade.Symbol)

	require.Len(t, result.Errors, 2)
	joined := fmt.Sprint(result.Errors)
	assert.Contains(t, joined, "line 3")
	assert.Contains(t, joined, "line 4")
}

func TestParseFileErrorsInLineOrder(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("symbol,direction\n")
	var want []int
	for i := 0; i < 300; i++ {
		if i%3 == 0 {
			sb.WriteString(",long\n")
			want = append(want, i+2)
			continue
		}
		sb.WriteString("ES,short\n")
	}

	result, err := NewParser(1, 8).ParseFile(context.Background(), strings.NewReader(sb.String()))
	require.NoError(t, err)
	require.Len(t, result.Rows, 200)
	require.Len(t, result.Errors, len(want))

	for i, e := range result.Errors {
		var le *LineError
		require.True(t, errors.As(e, &le))
		assert.Equal(t, want[i], le.Line)
		assert.ErrorIs(t, e, domain.ErrEmptySymbol)
	}
}

func TestParseFileHeaderErrors(t *testing.T) {
	t.Parallel()

	_, err := NewParser(10, 1).ParseFile(context.Background(), strings.NewReader("price,qty\n1,2\n"))
	assert.Error(t, err)

	result, err := NewParser(10, 1).ParseFile(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
}

func TestWorkerPoolImportsFiles(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer db.Close()
	repo := sqlite.NewTradeRepository(db)

	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv"), filepath.Join(dir, "missing.csv")}
	require.NoError(t, os.WriteFile(files[0], []byte(generateTestCSV(5)), 0o600))
	require.NoError(t, os.WriteFile(files[1], []byte(generateTestCSV(3)), 0o600))

	ctx := context.Background()
	pool := NewWorkerPool(2, NewParser(2, 2), NewLoader(repo))
	pool.Start(ctx)

	results := make(chan JobResult, len(files))
	for _, f := range files {
		pool.Submit(Job{FilePath: f, Owner: "alice", Result: results})
	}

	var total int64
	failed := 0
	for range files {
		r := <-results
		total += r.RecordsCount
		if r.Error != nil {
			failed++
		}
	}
	pool.Stop()

	assert.Equal(t, int64(8), total)
	assert.Equal(t, 1, failed)

	trades, err := repo.List(ctx, "alice", domain.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, trades, 8)
}

func TestLoaderStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer db.Close()

	result, err := NewParser(10, 1).ParseFile(context.Background(), strings.NewReader(generateTestCSV(3)))
	require.NoError(t, err)

	count, err := NewLoader(sqlite.NewTradeRepository(db)).LoadTrades(context.Background(), "", result.Rows)
	assert.ErrorIs(t, err, domain.ErrMissingOwner)
	assert.Zero(t, count)
}

func BenchmarkParser(b *testing.B) {

	csvData := generateTestCSV(100000)

	benchmarks := []struct {
		name      string
		batchSize int
		workers   int
	}{
		{"SingleWorker", 1000, 1},
		{"FourWorkers", 1000, 4},
		{"EightWorkers", 1000, 8},
		{"LargeBatch", 10000, 4},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			parser := NewParser(bm.batchSize, bm.workers)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				reader := bytes.NewReader([]byte(csvData))
				ctx := context.Background()

				_, err := parser.ParseFile(ctx, reader)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func generateTestCSV(lines int) string {
	var sb strings.Builder
	sb.WriteString("symbol,direction,entry_price,exit_price,size,fees,tags\n")

	symbols := []string{"BTCUSDT", "ETHUSDT", "EURUSD", "ES"}
	sides := []string{"long", "short"}

	for i := 0; i < lines; i++ {
		symbol := symbols[i%len(symbols)]
		entry := fmt.Sprintf("%.2f", float64(20+i%30))
		exit := fmt.Sprintf("%.2f", float64(21+i%29))
		size := fmt.Sprintf("%d", 1+i%10)

		sb.WriteString(fmt.Sprintf(
			"%s,%s,%s,%s,%s,0.5,\"swing, test\"\n",
			symbol, sides[i%2], entry, exit, size,
		))
	}

	return sb.String()
}
