package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"tesla-finder/models"
	"tesla-finder/utils"
)

// extractCardsJS collects car cards from a rendered listing page. It tries
// known card containers first and falls back to links whose text mentions
// a Tesla model.
const extractCardsJS = `
(function() {
	var results = [];
	var seen = {};

	function text(root, selectors) {
		for (var i = 0; i < selectors.length; i++) {
			var el = root.querySelector(selectors[i]);
			if (el && el.innerText && el.innerText.trim()) return el.innerText.trim();
		}
		return '';
	}
	function firstLine(lines, re) {
		for (var i = 0; i < lines.length; i++) {
			if (re.test(lines[i])) return lines[i];
		}
		return '';
	}

	var cardSelectors = [
		'[data-testid="listing-card"]',
		'[data-testid*="listing"]',
		'article',
		'li[class*="listing"]',
		'div[class*="listing-card"]',
		'div[class*="car-card"]',
		'a[href*="tesla"]'
	];

	var cards = [];
	for (var si = 0; si < cardSelectors.length; si++) {
		cards = document.querySelectorAll(cardSelectors[si]);
		if (cards.length > 1) break;
	}

	for (var i = 0; i < cards.length; i++) {
		var card = cards[i];
		var lines = (card.innerText || '').split('\n').map(function(l){return l.trim();}).filter(Boolean);

		var link = card.tagName === 'A' ? card : card.querySelector('a[href]');
		var url = link && link.href ? link.href : '';
		if (url && seen[url]) continue;

		var title = text(card, ['h2', 'h3', '[data-testid*="title"]', '[class*="title"]']) ||
		            firstLine(lines, /tesla|model\s*[3sxy]|cybertruck/i);
		if (!title) continue;

		var img = card.querySelector('img');
		var image = img ? (img.currentSrc || img.src || img.getAttribute('data-src') || '') : '';

		results.push({
			title:    title,
			price:    text(card, ['[data-testid*="price"]', '[class*="price"]']) || firstLine(lines, /(AED|د\.إ|درهم|\$|€|£)\s*[\d,.]+|[\d,.]+\s*(AED|K\b)/i),
			mileage:  text(card, ['[data-testid*="mileage"]', '[class*="mileage"]', '[class*="kilometer"]']) || firstLine(lines, /\d[\d,.]*\s*(k\s*)?(km|kms|kilomet|mi\b|miles)/i),
			year:     text(card, ['[data-testid*="year"]', '[class*="year"]']),
			location: text(card, ['[data-testid*="location"]', '[class*="location"]']),
			url:      url,
			image:    image
		});
		if (url) seen[url] = true;
	}
	return results;
})()
`

// BrowserExtractor renders pages in headless Chrome. One browser process
// is shared; every call opens its own tab.
type BrowserExtractor struct {
	logger        *utils.Logger
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	settle        time.Duration
}

// NewBrowserExtractor launches Chrome. chromeBin may be empty, in which
// case the usual install locations are searched.
func NewBrowserExtractor(logger *utils.Logger, chromeBin string) (*BrowserExtractor, error) {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// An empty Run starts the browser so later tabs share it.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chromedp start: %w", err)
	}

	return &BrowserExtractor{
		logger:        logger,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		settle:        5 * time.Second,
	}, nil
}

// FetchAndInterpret opens url in a new tab, scrolls to trigger lazy
// loading and runs the card extraction script.
func (b *BrowserExtractor) FetchAndInterpret(ctx context.Context, url, _ string) ([]*models.RawListing, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()

	// the tab lives under the browser context, so tie it to the caller's
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelTimeout context.CancelFunc
		tabCtx, cancelTimeout = context.WithDeadline(tabCtx, deadline)
		defer cancelTimeout()
	}

	var cards []cardData
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(b.settle),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(extractCardsJS, &cards),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("chromedp extract: %w", err)
	}

	b.logger.Debug("[browser] %s: found %d cards", url, len(cards))

	now := time.Now().UTC()
	out := make([]*models.RawListing, 0, len(cards))
	for _, c := range cards {
		r := c.raw(url)
		r.ScrapedAt = now
		out = append(out, r)
	}
	return out, nil
}

// Close shuts the shared browser down.
func (b *BrowserExtractor) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
