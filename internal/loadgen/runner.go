package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/okian/fairway/pkg/logger"
)

const (
	settlePollInterval = 200 * time.Millisecond
	clubSampleSize     = 200
	filePermission     = 0o600
)

// Sentinel errors for load runs.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrNoClubs      = errors.New("catalog has no clubs")
	ErrNotSettled   = errors.New("ingestion did not settle")
	ErrInconsistent = errors.New("inconsistent recommendations")
)

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeFailed
)

// Run submits generated reviews, waits until the service has persisted them
// and checks one recommendation response for consistency.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg)

	log.Info(ctx, "starting load run",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("reviews", cfg.Reviews),
		logger.Int("workers", cfg.Workers),
	)

	if status, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil); err != nil || status != http.StatusOK {
		return stats, fmt.Errorf("%w: status %d: %v", ErrUnhealthy, status, err)
	}

	var clubs clubsResponse
	if _, err := c.do(ctx, http.MethodGet, "/clubs", url.Values{"limit": {strconv.Itoa(clubSampleSize)}}, nil, &clubs); err != nil {
		return stats, fmt.Errorf("list clubs: %w", err)
	}
	if len(clubs.Items) == 0 {
		return stats, ErrNoClubs
	}
	ids := make([]string, 0, len(clubs.Items))
	for _, item := range clubs.Items {
		ids = append(ids, item.ID)
	}

	before, err := reviewCount(ctx, c)
	if err != nil {
		return stats, err
	}
	stats.ReviewsBefore = before

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	subs := newGenerator(seed, ids, uuid.NewString()[:8]).generate(cfg.Reviews)
	stats.Generated = len(subs)

	submit(ctx, c, cfg, subs, stats)

	after, err := settle(ctx, c, before+int64(stats.Accepted), cfg.SettleTimeout)
	stats.ReviewsAfter = after
	if err != nil {
		return stats, err
	}

	if err := verifyRecommendations(ctx, c, stats); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveSubmissions(cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "load run completed",
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int64("reviews_added", stats.ReviewsAfter-stats.ReviewsBefore),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// submit posts subs from cfg.Workers goroutines. Every DuplicateEvery-th
// submission is sent twice.
func submit(ctx context.Context, c *client, cfg *Config, subs []Submission, stats *Stats) {
	var submitted, accepted, duplicate, failed atomic.Int64
	jobs := make(chan Submission, max(cfg.Workers, 1)*2)

	var wg sync.WaitGroup
	for range max(cfg.Workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				submitted.Add(1)
				switch post(ctx, c, s) {
				case outcomeAccepted:
					accepted.Add(1)
				case outcomeDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	// Duplicates go out after their originals so they land on the seen-set.
	var resend []Submission
	for i, s := range subs {
		select {
		case <-ctx.Done():
		case jobs <- s:
		}
		if cfg.DuplicateEvery > 0 && (i+1)%cfg.DuplicateEvery == 0 {
			resend = append(resend, s)
		}
	}
	close(jobs)
	wg.Wait()

	for _, s := range resend {
		submitted.Add(1)
		switch post(ctx, c, s) {
		case outcomeAccepted:
			accepted.Add(1)
		case outcomeDuplicate:
			duplicate.Add(1)
		default:
			failed.Add(1)
		}
	}

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Failed = int(failed.Load())
}

func post(ctx context.Context, c *client, s Submission) outcome {
	var ack ackResponse
	status, err := c.do(ctx, http.MethodPost, "/reviews", nil, s, &ack)
	switch {
	case err != nil:
		return outcomeFailed
	case status == http.StatusAccepted:
		return outcomeAccepted
	case status == http.StatusOK && ack.Duplicate:
		return outcomeDuplicate
	default:
		return outcomeFailed
	}
}

func reviewCount(ctx context.Context, c *client) (int64, error) {
	var st statsResponse
	status, err := c.do(ctx, http.MethodGet, "/stats", nil, nil, &st)
	if err != nil {
		return 0, fmt.Errorf("read stats: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("read stats: status %d", status)
	}
	return st.Catalog.Reviews, nil
}

// settle polls /stats until the review count reaches want.
func settle(ctx context.Context, c *client, want int64, timeout time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		got, err := reviewCount(ctx, c)
		if err == nil && got >= want {
			return got, nil
		}
		select {
		case <-ctx.Done():
			return got, fmt.Errorf("%w: have %d reviews, want %d", ErrNotSettled, got, want)
		case <-ticker.C:
		}
	}
}

// verifyRecommendations asks for recommendations for a mid handicapper and
// checks ranks are consecutive and scores non-increasing.
func verifyRecommendations(ctx context.Context, c *client, stats *Stats) error {
	var recs recommendationsResponse
	q := url.Values{"handicap": {"15"}, "skill": {"Intermediate"}, "limit": {"20"}}
	status, err := c.do(ctx, http.MethodGet, "/recommendations", q, nil, &recs)
	if err != nil {
		return fmt.Errorf("recommendations: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("recommendations: status %d", status)
	}
	stats.Recommendations = len(recs.Results)

	for i, r := range recs.Results {
		if r.Rank != i+1 {
			return fmt.Errorf("%w: rank %d at position %d", ErrInconsistent, r.Rank, i+1)
		}
		if i > 0 && r.PersonalizedScore > recs.Results[i-1].PersonalizedScore {
			return fmt.Errorf("%w: %s scores above %s", ErrInconsistent, r.ItemID, recs.Results[i-1].ItemID)
		}
	}
	return nil
}

func saveSubmissions(path string, subs []Submission) error {
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal submissions: %w", err)
	}
	return os.WriteFile(path, data, filePermission)
}
