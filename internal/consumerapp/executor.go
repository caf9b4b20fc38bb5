package consumerapp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnsupportedType is returned by Dispatch for job types this consumer
// has no executor for (a leased rank job is not reported back, so it stays
// processing until its lease expires and is then leased again; see
// DESIGN.md's Open Question decision).
var ErrUnsupportedType = fmt.Errorf("unsupported job type")

// CrawlResult is the result recorded on complete for a crawl job.
type CrawlResult struct {
	StatusCode int    `json:"statusCode"`
	Bytes      int    `json:"bytes"`
	Body       string `json:"body,omitempty"`
}

const maxCrawlBodyBytes = 4096

// executeCrawl fetches target and summarizes the response, mirroring the
// teacher's executeJob timeout-bounded execution but over HTTP instead of a
// shell command.
func executeCrawl(ctx context.Context, target string, timeout time.Duration) (CrawlResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CrawlResult{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CrawlResult{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCrawlBodyBytes))
	if err != nil {
		return CrawlResult{}, fmt.Errorf("read response from %s: %w", target, err)
	}

	if resp.StatusCode >= 400 {
		return CrawlResult{}, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}

	return CrawlResult{
		StatusCode: resp.StatusCode,
		Bytes:      len(body),
		Body:       string(body),
	}, nil
}

// Dispatch executes job by type. Only crawl jobs are supported today.
func Dispatch(ctx context.Context, jobType, target string, timeout time.Duration) (any, error) {
	switch jobType {
	case "crawl":
		return executeCrawl(ctx, target, timeout)
	default:
		return nil, ErrUnsupportedType
	}
}
