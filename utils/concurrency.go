package utils

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// WorkerPool manages a pool of goroutines with rate limiting.
type WorkerPool struct {
	maxWorkers  int
	rateLimitMs int
	semaphore   chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastRequest time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers:  maxWorkers,
		rateLimitMs: rateLimitMs,
		semaphore:   make(chan struct{}, maxWorkers),
	}
}

// Submit enqueues a job for execution in the pool.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		wp.enforceRateLimit()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Each runs job(i) for i in [0, n) on the pool and waits for all of them.
// Jobs are started in index order; callers store results by index so the
// join order never depends on completion order.
func (wp *WorkerPool) Each(n int, job func(i int)) {
	for i := 0; i < n; i++ {
		i := i
		wp.Submit(func() { job(i) })
	}
	wp.Wait()
}

func (wp *WorkerPool) enforceRateLimit() {
	if wp.rateLimitMs <= 0 {
		return
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	if !wp.lastRequest.IsZero() {
		if elapsed := time.Since(wp.lastRequest); elapsed < minInterval {
			time.Sleep(minInterval - elapsed)
		}
	}
	wp.lastRequest = time.Now()
}

// URLSet is a thread-safe set of listing URLs. Entries are compared after
// CanonicalURL, so "https://x.ae/car/1/" and "https://X.ae/car/1#photos"
// count as the same listing.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(rawURL string) bool {
	key := CanonicalURL(rawURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the URL has already been seen.
func (s *URLSet) Contains(rawURL string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[CanonicalURL(rawURL)]
	return exists
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// CanonicalURL lowercases scheme and host, drops the fragment and any
// trailing slash. Unparseable input is only trimmed.
func CanonicalURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// Domain returns the host of rawURL without a leading "www.", or "" when
// the URL has no host.
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
