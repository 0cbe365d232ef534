package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// Session is one browser tab. Every acquired session must be released on
// all exit paths; Release is safe to call exactly once.
type Session interface {
	HTML(ctx context.Context, url string) (string, error)
	Release()
}

// SessionPool hands out sessions up to a fixed bound; Acquire blocks until
// one is free or ctx is done.
type SessionPool interface {
	Acquire(ctx context.Context) (Session, error)
}

// Pool shares a single headless Chrome process across a bounded number of
// concurrent tabs.
type Pool struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	sem         chan struct{}
	pageTimeout time.Duration
}

func NewPool(size int, userAgent string, pageTimeout time.Duration) *Pool {
	if size <= 0 {
		size = 1
	}
	if pageTimeout <= 0 {
		pageTimeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Pool{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sem:         make(chan struct{}, size),
		pageTimeout: pageTimeout,
	}
}

func (p *Pool) Acquire(ctx context.Context) (Session, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tabCtx, tabCancel := chromedp.NewContext(p.allocCtx)
	return &tabSession{
		ctx:         tabCtx,
		cancel:      tabCancel,
		pool:        p,
		pageTimeout: p.pageTimeout,
	}, nil
}

func (p *Pool) Close() {
	p.allocCancel()
}

type tabSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	pool        *Pool
	pageTimeout time.Duration
}

// HTML navigates the tab and captures the rendered DOM after the document
// body is ready, so client-side rendered content is included.
func (s *tabSession) HTML(ctx context.Context, url string) (string, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.pageTimeout)
	defer cancel()

	// Bail out early if the caller's context dies mid-navigation.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

func (s *tabSession) Release() {
	s.cancel()
	<-s.pool.sem
}
