package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mvolkov/firmscope/internal/core/domain"
	"github.com/mvolkov/firmscope/internal/infrastructure/resilience"
)

type Config struct {
	MaxPagesPerSource int
	SectionKeywords   []string
	StaticPaths       []string
	// RatePerHost throttles navigations per target host, protecting the
	// sites from the worker pool's aggregate throughput.
	RatePerHost rate.Limit
	RateBurst   int
}

func (c Config) withDefaults() Config {
	out := c
	if out.MaxPagesPerSource <= 0 {
		out.MaxPagesPerSource = 6
	}
	if len(out.SectionKeywords) == 0 {
		out.SectionKeywords = DefaultSectionKeywords
	}
	if out.StaticPaths == nil {
		out.StaticPaths = DefaultStaticPaths
	}
	if out.RatePerHost <= 0 {
		out.RatePerHost = rate.Limit(1)
	}
	if out.RateBurst <= 0 {
		out.RateBurst = 2
	}
	return out
}

// Fetcher walks a source's landing page plus discovered section links
// through a pooled browser session. Individual page failures are counted
// and skipped; only a dead landing page fails the source.
type Fetcher struct {
	pool     SessionPool
	cfg      Config
	executor *resilience.Executor

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewFetcher(pool SessionPool, cfg Config, executor *resilience.Executor) *Fetcher {
	return &Fetcher{
		pool:     pool,
		cfg:      cfg.withDefaults(),
		executor: executor,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *Fetcher) Fetch(
	ctx context.Context,
	source domain.Source,
	emit func(domain.RawPage) error,
) (domain.FetchReport, error) {
	var report domain.FetchReport

	session, err := f.pool.Acquire(ctx)
	if err != nil {
		return report, fmt.Errorf("acquire browser session: %w", err)
	}
	defer session.Release()

	root, ok := normalizeURL(source.RootURL, "")
	if !ok {
		return report, domain.WrapError(domain.ErrInvalidInput, "fetch source",
			fmt.Errorf("invalid root url %q", source.RootURL))
	}

	report.Attempted++
	homeHTML, err := f.page(ctx, session, root)
	if err != nil {
		report.Failed++
		return report, domain.WrapError(domain.ErrFetchFailed, "fetch landing page", err)
	}
	report.Fetched++

	if err := emit(domain.RawPage{
		SourceID:  source.ID,
		URL:       root,
		Body:      homeHTML,
		FetchedAt: time.Now().UTC(),
	}); err != nil {
		return report, err
	}

	seen := map[string]bool{root: true}
	links := mergeLinks(seen,
		sectionLinks(root, homeHTML, f.cfg.SectionKeywords),
		staticLinks(root, f.cfg.StaticPaths),
		staticLinks(root, source.ExtraPaths),
	)
	if max := f.cfg.MaxPagesPerSource - 1; len(links) > max {
		links = links[:max]
	}

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Attempted++
		html, err := f.page(ctx, session, link)
		if err != nil {
			report.Failed++
			slog.Warn("page_fetch_failed", "source_id", source.ID, "url", link, "error", err)
			continue
		}
		report.Fetched++

		if err := emit(domain.RawPage{
			SourceID:  source.ID,
			URL:       link,
			Body:      html,
			FetchedAt: time.Now().UTC(),
		}); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (f *Fetcher) page(ctx context.Context, session Session, pageURL string) (string, error) {
	if err := f.limiter(pageURL).Wait(ctx); err != nil {
		return "", err
	}

	var html string
	call := func(callCtx context.Context) error {
		var err error
		html, err = session.HTML(callCtx, pageURL)
		return err
	}

	var err error
	if f.executor != nil {
		err = f.executor.Execute(ctx, "fetch.page", call, classifyFetchError)
	} else {
		err = call(ctx)
	}
	return html, err
}

func (f *Fetcher) limiter(pageURL string) *rate.Limiter {
	host := ""
	if parsed, err := url.Parse(pageURL); err == nil {
		host = parsed.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	limiter, ok := f.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(f.cfg.RatePerHost, f.cfg.RateBurst)
		f.limiters[host] = limiter
	}
	return limiter
}

// classifyFetchError treats navigation timeouts and transport drops as
// transient. A per-attempt deadline surfaces as DeadlineExceeded and is
// retried; only the caller's cancellation stops the attempt loop.
func classifyFetchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
