// Package ocr runs asynchronous document analysis jobs and normalizes their
// recognition blocks into lines, form fields and tables.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/google/uuid"
)

var (
	ErrJobFailed  = errors.New("ocr job failed")
	ErrJobTimeout = errors.New("ocr job timed out")
)

type Config struct {
	Bucket       string        // bucket the staged documents live in
	PollInterval time.Duration // default 2s
	MaxWait      time.Duration // default 120s
}

// JobRunner starts a document analysis job for a staged object, waits for it and
// returns every recognition block across all result pages.
type JobRunner struct {
	api    TextractAPI
	cfg    Config
	logger *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewJobRunner(api TextractAPI, cfg Config, logger *slog.Logger) *JobRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 120 * time.Second
	}
	return &JobRunner{api: api, cfg: cfg, logger: logger, now: time.Now, sleep: sleepCtx}
}

// Run analyzes the object at key with table and form detection.
func (r *JobRunner) Run(ctx context.Context, key string) ([]RecognitionBlock, error) {
	rid := uuid.New().String()
	start := r.now()

	r.logger.Info("ocr.job.start", "req_id", rid, "bucket", r.cfg.Bucket, "key", key,
		"features", "TABLES,FORMS")

	started, err := r.api.StartDocumentAnalysis(ctx, &textract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(r.cfg.Bucket),
				Name:   aws.String(key),
			},
		},
		FeatureTypes: []types.FeatureType{types.FeatureTypeTables, types.FeatureTypeForms},
	})
	if err != nil {
		r.logger.Error("ocr.job.start_failed", "req_id", rid, "error", err)
		return nil, fmt.Errorf("start document analysis: %w", err)
	}
	jobID := aws.ToString(started.JobId)
	r.logger.Info("ocr.job.started", "req_id", rid, "job_id", jobID)

	polls := 0
	for {
		elapsed := r.now().Sub(start)
		if elapsed > r.cfg.MaxWait {
			r.logger.Error("ocr.job.timeout", "req_id", rid, "job_id", jobID, "polls", polls,
				"elapsed_ms", elapsed.Milliseconds())
			return nil, fmt.Errorf("%w after %s (job %s)", ErrJobTimeout, r.cfg.MaxWait, jobID)
		}

		resp, err := r.api.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{JobId: aws.String(jobID)})
		if err != nil {
			r.logger.Error("ocr.job.poll_failed", "req_id", rid, "job_id", jobID, "error", err)
			return nil, fmt.Errorf("get document analysis: %w", err)
		}
		polls++

		switch resp.JobStatus {
		case types.JobStatusSucceeded:
			blocks, pages, err := r.collect(ctx, jobID, resp)
			if err != nil {
				r.logger.Error("ocr.job.page_failed", "req_id", rid, "job_id", jobID, "error", err)
				return nil, err
			}
			r.logger.Info("ocr.job.ok",
				"req_id", rid,
				"job_id", jobID,
				"polls", polls,
				"pages", pages,
				"blocks", len(blocks),
				"breakdown", breakdown(blocks),
				"elapsed_ms", r.now().Sub(start).Milliseconds(),
			)
			return blocks, nil

		case types.JobStatusInProgress, types.JobStatusPartialSuccess:
			r.logger.Debug("ocr.job.pending", "req_id", rid, "job_id", jobID, "status", resp.JobStatus,
				"elapsed_ms", elapsed.Milliseconds())
			if err := r.sleep(ctx, r.cfg.PollInterval); err != nil {
				return nil, err
			}

		default:
			r.logger.Error("ocr.job.failed", "req_id", rid, "job_id", jobID, "status", resp.JobStatus,
				"message", aws.ToString(resp.StatusMessage))
			return nil, fmt.Errorf("%w with status: %s", ErrJobFailed, resp.JobStatus)
		}
	}
}

// collect follows continuation tokens until exhausted.
func (r *JobRunner) collect(ctx context.Context, jobID string, first *textract.GetDocumentAnalysisOutput) ([]RecognitionBlock, int, error) {
	blocks := convertBlocks(nil, first.Blocks)
	pages := 1
	token := first.NextToken
	for aws.ToString(token) != "" {
		resp, err := r.api.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
			JobId:     aws.String(jobID),
			NextToken: token,
		})
		if err != nil {
			return nil, pages, fmt.Errorf("get document analysis page %d: %w", pages+1, err)
		}
		pages++
		blocks = convertBlocks(blocks, resp.Blocks)
		token = resp.NextToken
	}
	return blocks, pages, nil
}

func breakdown(blocks []RecognitionBlock) map[string]int {
	out := map[string]int{}
	for _, b := range blocks {
		out[string(b.Kind)]++
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
