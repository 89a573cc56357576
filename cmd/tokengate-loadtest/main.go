package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/directory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	loadEmail    = "load@example.com"
	loadPassword = "load-test-password"
)

func main() {
	var (
		tokens      = flag.Int("tokens", 10000, "number of tokens to issue")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "validations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *tokens < 2 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "tokens must be >= 2; concurrency and ops must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	users := directory.NewMemoryDirectory(bcrypt.MinCost)
	if _, err := users.Create(ctx, directory.NewUser{Name: "load", Email: loadEmail, Password: loadPassword}); err != nil {
		fmt.Fprintf(os.Stderr, "create user failed: %v\n", err)
		os.Exit(1)
	}

	cfg := tokengate.DefaultConfig()
	cfg.JWT.Secret = []byte("load-test-secret")
	cfg.Revocation.PruneInterval = 0
	engine, err := tokengate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserDirectory(users).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	issued := make([]string, *tokens)
	fmt.Printf("issuing %d tokens...\n", *tokens)
	startIssue := time.Now()
	for i := range issued {
		res, err := engine.Login(ctx, loadEmail, loadPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		issued[i] = res.Token
	}
	fmt.Printf("issued in %s\n", time.Since(startIssue).Round(time.Millisecond))

	// Every even-indexed token is revoked.
	revoked := func(i int) bool { return i%2 == 0 }

	validateStats := runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) (time.Duration, bool) {
		idx := r.Intn(len(issued))
		t0 := time.Now()
		_, err := engine.Validate(ctx, issued[idx])
		return time.Since(t0), err == nil
	})

	logoutStats := runPhase((len(issued)+1)/2, *concurrency, func(i int, _ *rand.Rand) (time.Duration, bool) {
		t0 := time.Now()
		err := engine.Logout(ctx, issued[i*2])
		return time.Since(t0), err == nil
	})

	var violations int64
	mixedStats := runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) (time.Duration, bool) {
		idx := r.Intn(len(issued))
		t0 := time.Now()
		_, err := engine.Validate(ctx, issued[idx])
		d := time.Since(t0)
		switch {
		case revoked(idx) && !errors.Is(err, tokengate.ErrTokenRevoked):
			atomic.AddInt64(&violations, 1)
			return d, false
		case !revoked(idx) && err != nil:
			return d, false
		}
		return d, true
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("logout", logoutStats)
	printStats("validate-after-logout", mixedStats)
	fmt.Printf("revoked tokens accepted: %d\n", violations)
	if violations > 0 {
		os.Exit(1)
	}
}

// runPhase calls op for i in [0, ops) across concurrency workers. Each worker
// passes its own random source.
func runPhase(ops, concurrency int, op func(i int, r *rand.Rand) (time.Duration, bool)) phaseStats {
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
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				d, ok := op(i, r)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
	return samples[(len(samples)-1)*p/100]
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
