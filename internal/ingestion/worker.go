package ingestion

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jeovahfialho/tradejournal/internal/domain"
)

type WorkerPool struct {
	workers  int
	parser   *Parser
	loader   *Loader
	jobQueue chan Job
	wg       sync.WaitGroup
}

type Job struct {
	FilePath string
	Owner    domain.Owner
	Result   chan<- JobResult
}

type JobResult struct {
	FilePath     string
	RecordsCount int64
	Skipped      []error
	Error        error
}

func NewWorkerPool(workers int, parser *Parser, loader *Loader) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers:  workers,
		parser:   parser,
		loader:   loader,
		jobQueue: make(chan Job, workers*2),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) Submit(job Job) {
	wp.jobQueue <- job
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}

			job.Result <- wp.processFile(ctx, job)
		}
	}
}

func (wp *WorkerPool) processFile(ctx context.Context, job Job) JobResult {
	file, err := os.Open(job.FilePath)
	if err != nil {
		return JobResult{
			FilePath: job.FilePath,
			Error:    fmt.Errorf("open file: %w", err),
		}
	}
	defer file.Close()

	parseResult, err := wp.parser.ParseFile(ctx, file)
	if err != nil {
		return JobResult{
			FilePath: job.FilePath,
			Error:    fmt.Errorf("parse: %w", err),
		}
	}

	count, err := wp.loader.LoadTrades(ctx, job.Owner, parseResult.Rows)
	result := JobResult{
		FilePath:     job.FilePath,
		RecordsCount: count,
		Skipped:      parseResult.Errors,
	}
	if err != nil {
		result.Error = fmt.Errorf("load: %w", err)
	}
	return result
}
