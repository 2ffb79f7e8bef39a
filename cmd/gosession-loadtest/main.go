package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// stubAPI issues sequential opaque tokens without leaving the process, so
// the numbers measure the engine and the storage backend.
type stubAPI struct {
	issued    atomic.Int64
	refreshes atomic.Int64
	latency   time.Duration
}

func (s *stubAPI) pair() *identity.TokenPair {
	n := strconv.FormatInt(s.issued.Add(1), 10)
	now := time.Now()
	return &identity.TokenPair{
		AccessToken:      "access-" + n,
		RefreshToken:     "refresh-" + n,
		ExpiresAt:        now.Add(15 * time.Minute),
		RefreshExpiresAt: now.Add(24 * time.Hour),
	}
}

func (s *stubAPI) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubAPI) Login(ctx context.Context, email, _ string) (*identity.LoginResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return &identity.LoginResult{
		User:   &identity.User{ID: "1", Email: email, IsActive: true},
		Tokens: s.pair(),
	}, nil
}

func (s *stubAPI) Signup(ctx context.Context, req identity.SignupRequest) (*identity.User, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return &identity.User{ID: "1", Email: req.Email, IsActive: true}, nil
}

func (s *stubAPI) RefreshToken(ctx context.Context, _ string) (*identity.TokenPair, error) {
	s.refreshes.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.pair(), nil
}

func (s *stubAPI) Logout(context.Context, string) error { return nil }

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gosession-load", "redis key namespace")
		apiLatency  = flag.Duration("api-latency", 2*time.Millisecond, "simulated identity API latency")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goSession.DefaultConfig()
	cfg.Features.SessionManagement = false
	cfg.Features.RateLimiting = false

	api := &stubAPI{latency: *apiLatency}
	engine, err := goSession.New().
		WithConfig(cfg).
		WithAPI(api).
		WithBackend(storage.NewRedisBackend(client, *prefix, time.Hour)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	engine.Initialize(ctx)
	if !engine.Login(ctx, goSession.LoginCredentials{Email: "load@example.com", Password: "L0ad!Tester"}) {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", engine.State().Error)
		os.Exit(1)
	}

	validateStats := runPhase(*ops, *concurrency, func() bool {
		return engine.ValidateSession(ctx)
	})
	activityStats := runPhase(*ops, *concurrency, func() bool {
		engine.UpdateLastActivity(ctx)
		return true
	})
	before := api.refreshes.Load()
	refreshStats := runPhase(*ops/10+1, *concurrency, func() bool {
		return engine.RefreshToken(ctx)
	})
	refreshCalls := api.refreshes.Load() - before

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("activity", activityStats)
	printStats("refresh", refreshStats)
	fmt.Printf("refresh: %d identity API calls for %d requests\n", refreshCalls, refreshStats.ops)

	snap := engine.MetricsSnapshot()
	fmt.Printf("activity writes coalesced: %d\n", snap.Counters[goSession.MetricActivityCoalesced])
}

// runPhase spreads ops calls of op over concurrency workers.
func runPhase(ops, concurrency int, op func() bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op()
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
