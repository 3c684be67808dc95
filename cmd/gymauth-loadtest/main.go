// Command gymauth-loadtest measures permission decision latency while the snapshot is
// being replaced concurrently, and session store round-trips against Redis.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/ironhall/gymauth/permcache"
	"github.com/ironhall/gymauth/permission"
	"github.com/ironhall/gymauth/session"
)

func main() {
	var (
		modules     int
		privileges  int
		concurrency int
		ops         int
		sessionOps  int
		redisAddr   string
		prefix      string
	)
	flags := pflag.NewFlagSet("gymauth-loadtest", pflag.ExitOnError)
	flags.IntVar(&modules, "modules", 40, "modules in the generated permission payload")
	flags.IntVar(&privileges, "privileges", 8, "privileges per module")
	flags.IntVar(&concurrency, "concurrency", 256, "number of concurrent workers")
	flags.IntVar(&ops, "ops", 2000000, "decision queries to run")
	flags.IntVar(&sessionOps, "session-ops", 20000, "session store round-trips to run")
	flags.StringVar(&redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flags.StringVar(&prefix, "prefix", "gymauth-load", "session key prefix")
	_ = flags.Parse(os.Args[1:])

	if modules <= 0 || privileges <= 0 || concurrency <= 0 || ops <= 0 || sessionOps <= 0 {
		fmt.Fprintln(os.Stderr, "modules, privileges, concurrency, ops and session-ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	client, cleanup, err := openRedis(redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	even, odd := buildPayloads(modules, privileges)
	var flips atomic.Int64
	cache := permcache.New(permcache.FetcherFunc(func(context.Context, int64) (permission.Payload, error) {
		if flips.Add(1)%2 == 0 {
			return even, nil
		}
		return odd, nil
	}), permcache.Options{})
	if err = cache.Initialize(ctx, 1); err != nil {
		fmt.Fprintf(os.Stderr, "initialize failed: %v\n", err)
		os.Exit(1)
	}

	decideStats, refreshes := runDecidePhase(ctx, cache, even, ops, concurrency)
	store := session.NewRedisStore(client, prefix, time.Hour)
	sessionStats := runSessionPhase(ctx, store, sessionOps, concurrency)

	fmt.Println("---- results ----")
	printStats("decide", decideStats)
	fmt.Printf("decide: concurrent snapshot swaps=%d\n", refreshes)
	printStats("session", sessionStats)
}

// buildPayloads returns two payloads over the same modules whose grants differ in
// every other privilege.
func buildPayloads(modules, privileges int) (permission.Payload, permission.Payload) {
	var even, odd permission.Payload
	for m := 0; m < modules; m++ {
		name := fmt.Sprintf("Module%02d", m)
		even.AccessibleModules = append(even.AccessibleModules, name)
		odd.AccessibleModules = append(odd.AccessibleModules, name)
		for p := 0; p < privileges; p++ {
			g := permission.Grant{Module: name, Privilege: fmt.Sprintf("Priv%02d", p)}
			if p%2 == 0 {
				even.Grants = append(even.Grants, g)
			} else {
				odd.Grants = append(odd.Grants, g)
			}
		}
	}
	return even, odd
}

func runDecidePhase(ctx context.Context, cache *permcache.Cache, payload permission.Payload, ops, concurrency int) (phaseStats, int64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		refreshes int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	stop := make(chan struct{})
	refresherDone := make(chan struct{})
	go func() {
		defer close(refresherDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := cache.Refresh(ctx); err == nil {
				atomic.AddInt64(&refreshes, 1)
			}
		}
	}()

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					break
				}
				g := payload.Grants[r.Intn(len(payload.Grants))]
				t0 := time.Now()
				_ = cache.HasPrivilege(g.Module, g.Privilege)
				ok := cache.HasModuleAccess(g.Module)
				d := time.Since(t0)
				if !ok {
					// every payload carries every module
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, d)
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	close(stop)
	<-refresherDone

	return computeStats(total, latencies, failures), atomic.LoadInt64(&refreshes)
}

func runSessionPhase(ctx context.Context, store session.Store, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	// a single persisted session is shared, so workers serialize on it
	var storeMu sync.Mutex

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				identity := session.Identity{ID: int64(i + 1), DisplayName: "load", LoginEmail: "load@gym.test", RoleID: int64(worker%3 + 1)}
				tokens := session.Tokens{Access: fmt.Sprintf("a-%d", i), Refresh: fmt.Sprintf("r-%d", i)}

				storeMu.Lock()
				t0 := time.Now()
				err := store.SaveTokens(ctx, tokens)
				if err == nil {
					err = store.SaveIdentity(ctx, identity)
				}
				var rec session.Record
				if err == nil {
					rec, err = store.Load(ctx)
				}
				d := time.Since(t0)
				storeMu.Unlock()

				if err != nil || rec.Identity.ID != identity.ID {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	_ = store.Wipe(ctx)
	return computeStats(total, latencies, failures)
}

// openRedis connects to addr, REDIS_ADDR, or an in-process miniredis, in that order.
func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

type phaseStats struct {
	elapsed  time.Duration
	samples  int
	failures int64
	quantile map[int]time.Duration
}

var reportedQuantiles = []int{50, 95, 99}

func computeStats(elapsed time.Duration, samples []time.Duration, failures int64) phaseStats {
	st := phaseStats{elapsed: elapsed, samples: len(samples), failures: failures, quantile: map[int]time.Duration{}}
	if len(samples) == 0 {
		return st
	}
	slices.Sort(samples)
	for _, q := range reportedQuantiles {
		st.quantile[q] = samples[(len(samples)-1)*q/100]
	}
	return st
}

func (s phaseStats) throughput() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.samples) / s.elapsed.Seconds()
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%-8s ops=%d failures=%d elapsed=%s ops/sec=%.0f", name, s.samples, s.failures, s.elapsed.Round(time.Millisecond), s.throughput())
	for _, q := range reportedQuantiles {
		fmt.Printf(" p%d=%s", q, s.quantile[q].Round(time.Microsecond))
	}
	fmt.Println()
}
