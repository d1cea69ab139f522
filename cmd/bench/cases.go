// README: Bench cases for the matching API; includes HTTP, DB, Redis, concurrency and throughput checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"lifeline/internal/infra"
	"lifeline/migrations"
)

// Bench origin; seeded hospitals sit a few hundred metres north of it.
const (
	benchLat = 12.9716
	benchLng = 77.5946
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// hospitalID is set by the seed case.
	hospitalID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable (geo index)",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "Apply embedded migrations",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				n, err := infra.ApplyMigrations(ctx, r.db)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("files=%d", n)}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Every table in the embedded migrations exists",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables()
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS", Note: strings.Join(tables, ",")}
			},
		},
		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}, nil),

		{
			Name:  "Seed: hospital with ICU beds",
			Focus: "POST /api/hospitals and /api/beds",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.Seed {
					return Result{Status: "SKIP", Note: "seed=false"}
				}
				return seedHospital(ctx, r, base, r.cfg.Concurrency)
			},
		},

		// Matching
		httpCase("Match: find nearest (valid)", base+"/api/ambulance/find-nearest", map[string]any{
			"ambulance_id":      "bench-amb-1",
			"latitude":          benchLat,
			"longitude":         benchLng,
			"required_bed_type": "ICU",
		}, []int{200}, []int{404}),

		httpCase("Match: invalid bed type -> 400", base+"/api/ambulance/find-nearest", map[string]any{
			"ambulance_id":      "bench-amb-2",
			"latitude":          benchLat,
			"longitude":         benchLng,
			"required_bed_type": "FOO",
		}, []int{400}, nil),

		httpCase("Match: missing fields -> 400", base+"/api/ambulance/find-nearest", map[string]any{}, []int{400}, nil),

		httpCase("Match: latitude out of range -> 400", base+"/api/ambulance/find-nearest", map[string]any{
			"ambulance_id":      "bench-amb-3",
			"latitude":          123.0,
			"longitude":         benchLng,
			"required_bed_type": "ICU",
		}, []int{400}, nil),

		httpCaseMethod("Match: active reservation lookup", http.MethodGet, base+"/api/ambulance/bench-amb-1/reservation", nil, []int{200}, []int{404}),

		manualCase("Match: hold released after expiry", "wait for matching.hold_duration, then repeat the lookup and expect 404"),

		// Directory and inventory
		httpCaseMethod("Hospitals: nearby (valid)", http.MethodGet,
			fmt.Sprintf("%s/api/hospitals/nearby?lat=%f&lng=%f&radius_km=25", base, benchLat, benchLng), nil, []int{200}, nil),

		httpCaseMethod("Hospitals: nearby radius too large -> 400", http.MethodGet,
			fmt.Sprintf("%s/api/hospitals/nearby?lat=%f&lng=%f&radius_km=900", base, benchLat, benchLng), nil, []int{400}, nil),

		httpCaseMethod("Hospitals: stats", http.MethodGet, base+"/api/hospitals/stats", nil, []int{200}, nil),

		httpCaseMethod("Match: allowed bed types", http.MethodGet, base+"/api/ambulance/bed-types", nil, []int{200}, nil),

		{
			Name:  "Hospitals: update keeps coordinates",
			Focus: "PUT /api/hospitals/:id",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.hospitalID == "" {
					return Result{Status: "SKIP", Note: "no seeded hospital"}
				}
				return httpCaseMethod("", http.MethodPut, base+"/api/hospitals/"+r.hospitalID, map[string]any{
					"name":      "Bench Hospital (updated)",
					"latitude":  benchLat + 0.003,
					"longitude": benchLng,
				}, []int{200}, nil).Run(ctx, r)
			},
		},

		{
			Name:  "Beds: available count",
			Focus: "GET /api/beds/available/count",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.hospitalID == "" {
					return Result{Status: "SKIP", Note: "no seeded hospital"}
				}
				url := fmt.Sprintf("%s/api/beds/available/count?hospital_id=%s&bed_type=ICU", base, r.hospitalID)
				return httpCaseMethod("", http.MethodGet, url, nil, []int{200}, nil).Run(ctx, r)
			},
		},

		// Concurrency
		{
			Name:  "Concurrency: parallel matches never share a bed",
			Focus: "Each successful match holds a distinct bed",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentMatch(ctx, r, base+"/api/ambulance/find-nearest")
			},
		},

		// Performance
		{
			Name:  "Perf: nearby search throughput",
			Focus: "Read path under load",
			Run: func(ctx context.Context, r *Runner) Result {
				url := fmt.Sprintf("%s/api/hospitals/nearby?lat=%f&lng=%f&radius_km=25", base, benchLat, benchLng)
				return perfLoad(ctx, r, http.MethodGet, url, nil)
			},
		},
	}
}

func httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses, pendingStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			start := time.Now()
			status, _, err := r.call(ctx, method, url, body)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			latency := time.Since(start)

			if contains(okStatuses, status) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			if contains(pendingStatuses, status) {
				return Result{Status: "PENDING", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		},
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

// call sends body as JSON and decodes a JSON object response when present.
func (r *Runner) call(ctx context.Context, method, url string, body any) (int, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out, nil
}

func seedHospital(ctx context.Context, r *Runner, base string, beds int) Result {
	start := time.Now()
	status, body, err := r.call(ctx, http.MethodPost, base+"/api/hospitals", map[string]any{
		"name":      "Bench Hospital " + uuid.NewString()[:8],
		"latitude":  benchLat + 0.003,
		"longitude": benchLng,
	})
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: "FAIL", Note: fmt.Sprintf("create hospital status=%d", status)}
	}
	id, _ := body["id"].(string)
	if id == "" {
		return Result{Status: "FAIL", Note: "create hospital returned no id"}
	}
	r.hospitalID = id

	for i := 0; i < beds; i++ {
		status, _, err := r.call(ctx, http.MethodPost, base+"/api/beds", map[string]any{
			"hospital_id": id,
			"bed_number":  fmt.Sprintf("ICU-%03d", i+1),
			"bed_type":    "ICU",
		})
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if status != http.StatusCreated {
			return Result{Status: "FAIL", Note: fmt.Sprintf("create bed status=%d", status)}
		}
	}
	return Result{Status: "PASS", Latency: time.Since(start), Note: fmt.Sprintf("hospital=%s beds=%d", id, beds)}
}

func concurrentMatch(ctx context.Context, r *Runner, url string) Result {
	wg := sync.WaitGroup{}
	mu := sync.Mutex{}
	held := make(map[string]int)
	succ, notFound, errs := 0, 0, 0

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, body, err := r.call(ctx, http.MethodPost, url, map[string]any{
				"ambulance_id":      "bench-" + uuid.NewString(),
				"latitude":          benchLat,
				"longitude":         benchLng,
				"required_bed_type": "ICU",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs++
			case status == http.StatusOK:
				succ++
				if bedID, _ := body["bed_id"].(string); bedID != "" {
					held[bedID]++
				}
			case status == http.StatusNotFound, status == http.StatusConflict:
				notFound++
			default:
				errs++
			}
		}()
	}
	wg.Wait()

	for bedID, n := range held {
		if n > 1 {
			return Result{Status: "FAIL", Note: fmt.Sprintf("bed %s held %d times", bedID, n)}
		}
	}
	if succ == 0 {
		return Result{Status: "PENDING", Note: fmt.Sprintf("no successful match (not_found=%d errors=%d)", notFound, errs)}
	}
	note := fmt.Sprintf("success=%d not_found=%d errors=%d", succ, notFound, errs)
	if errs > 0 {
		return Result{Status: "FAIL", Note: note}
	}
	return Result{Status: "PASS", Note: note}
}

func perfLoad(ctx context.Context, r *Runner, method, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				_, _, err := r.call(ctx, method, url, payload)
				mu.Lock()
				if err != nil {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables() ([]string, error) {
	b, err := migrations.FS.ReadFile("0001_init.sql")
	if err != nil {
		return nil, err
	}
	matches := createTableRe.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}
