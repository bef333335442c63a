// README: Bench cases; setup, order flow, claim race, consistency, realtime and throughput checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Lm7452/UniEats/internal/realtime"
	"github.com/Lm7452/UniEats/internal/types"
	"github.com/Lm7452/UniEats/migrations"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	runID string

	student string
	drivers []string
	orderID string
	winner  string
	loser   string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		runID: fmt.Sprintf("%d", time.Now().UnixNano()),
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
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
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
	return []TestCase{
		{Name: "Env: Postgres connect", Run: caseDBPing},
		{Name: "Env: Redis connect", Run: caseRedisPing},
		{Name: "Migration: apply (optional)", Run: caseApplyMigration},
		{Name: "Migration: tables exist", Run: caseTablesExist},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", "", nil, http.StatusOK)
		}},
		{Name: "API: unauthenticated -> 401", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/profile", "", nil, http.StatusUnauthorized)
		}},
		{Name: "Setup: promote drivers and go available", Run: caseSetupDrivers},
		{Name: "API: app status sees drivers", Run: caseAppStatus},
		{Name: "Order: create with missing hall -> 400", Run: func(ctx context.Context, r *Runner) Result {
			body := orderBody(r.runID)
			delete(body, "residence_hall")
			return r.expect(ctx, http.MethodPost, "/api/orders", r.student, body, http.StatusBadRequest)
		}},
		{Name: "Order: create residential", Run: caseCreateOrder},
		{Name: "Concurrency: N drivers claim one order", Run: caseClaimRace},
		{Name: "Order: loser advances -> 403", Run: func(ctx context.Context, r *Runner) Result {
			if r.loser == "" {
				return Result{Status: statusSkip, Note: "no claim race result"}
			}
			return r.expect(ctx, http.MethodPut, "/api/driver/orders/"+r.orderID+"/status", r.loser, map[string]any{"status": "en_route"}, http.StatusForbidden)
		}},
		{Name: "Order: claimed -> delivered rejected", Run: func(ctx context.Context, r *Runner) Result {
			if r.winner == "" {
				return Result{Status: statusSkip, Note: "no claim race result"}
			}
			return r.expect(ctx, http.MethodPut, "/api/driver/orders/"+r.orderID+"/complete", r.winner, nil, http.StatusConflict)
		}},
		{Name: "Order: picked_up then delivered", Run: caseDeliver},
		{Name: "Order: claim after delivery -> 409", Run: func(ctx context.Context, r *Runner) Result {
			if r.loser == "" {
				return Result{Status: statusSkip, Note: "no claim race result"}
			}
			return r.expect(ctx, http.MethodPut, "/api/driver/orders/"+r.orderID+"/claim", r.loser, nil, http.StatusConflict)
		}},
		{Name: "Consistency: status_version and event trail", Run: caseConsistency},
		{Name: "Realtime: driver receives order_created", Run: caseRealtime},
		{Name: "Realtime: redis bus round trip", Run: caseRedisBus},
		{Name: "Perf: create order throughput", Run: casePerfCreate},
	}
}

func caseDBPing(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func caseRedisPing(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func caseApplyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	if err := migrations.Apply(ctx, r.db); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func caseTablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	for _, t := range []string{"users", "orders", "order_state_events"} {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass}
}

func caseSetupDrivers(ctx context.Context, r *Runner) Result {
	start := time.Now()
	r.student = "bench-student-" + r.runID + ":student-" + r.runID + "@unieats.test"
	if code, _, err := r.call(ctx, http.MethodGet, "/api/profile", r.student, nil); err != nil || code != http.StatusOK {
		return Result{Status: statusFail, Note: fmt.Sprintf("student sign-in status=%d err=%v", code, err)}
	}

	for i := 0; i < r.cfg.Concurrency; i++ {
		token := fmt.Sprintf("bench-driver-%s-%d:driver-%s-%d@unieats.test", r.runID, i, r.runID, i)
		code, profile, err := r.call(ctx, http.MethodGet, "/api/profile", token, nil)
		if err != nil || code != http.StatusOK {
			return Result{Status: statusFail, Note: fmt.Sprintf("driver sign-in status=%d err=%v", code, err)}
		}
		id, _ := profile["id"].(string)
		code, _, err = r.call(ctx, http.MethodPut, "/api/admin/users/"+id+"/role", r.cfg.AdminToken, map[string]any{"role": "driver"})
		if err != nil || code != http.StatusOK {
			return Result{Status: statusFail, Note: fmt.Sprintf("promote status=%d err=%v (is the admin email listed?)", code, err)}
		}
		code, _, err = r.call(ctx, http.MethodPut, "/api/driver/availability", token, map[string]any{"is_available": true})
		if err != nil || code != http.StatusOK {
			return Result{Status: statusFail, Note: fmt.Sprintf("availability status=%d err=%v", code, err)}
		}
		r.drivers = append(r.drivers, token)
	}
	return Result{Status: statusPass, Latency: time.Since(start), Note: fmt.Sprintf("drivers=%d", len(r.drivers))}
}

func caseAppStatus(ctx context.Context, r *Runner) Result {
	code, body, err := r.call(ctx, http.MethodGet, "/api/app-status", "", nil)
	if err != nil || code != http.StatusOK {
		return Result{Status: statusFail, Note: fmt.Sprintf("status=%d err=%v", code, err)}
	}
	n, _ := body["availableDriverCount"].(float64)
	if int(n) < len(r.drivers) {
		return Result{Status: statusFail, Note: fmt.Sprintf("availableDriverCount=%v", n)}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("availableDriverCount=%v", n)}
}

func caseCreateOrder(ctx context.Context, r *Runner) Result {
	start := time.Now()
	code, body, err := r.call(ctx, http.MethodPost, "/api/orders", r.student, orderBody(r.runID))
	if err != nil || code != http.StatusCreated {
		return Result{Status: statusFail, Note: fmt.Sprintf("status=%d err=%v body=%v", code, err, body)}
	}
	r.orderID, _ = body["id"].(string)
	if body["status"] != "pending" {
		return Result{Status: statusFail, Note: fmt.Sprintf("status field=%v", body["status"])}
	}
	return Result{Status: statusPass, Latency: time.Since(start), Note: "order=" + r.orderID}
}

func caseClaimRace(ctx context.Context, r *Runner) Result {
	if r.orderID == "" || len(r.drivers) < 2 {
		return Result{Status: statusSkip, Note: "setup incomplete"}
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []string
		conflict int
		other    []int
	)
	start := make(chan struct{})
	began := time.Now()
	for _, token := range r.drivers {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			<-start
			code, _, err := r.call(ctx, http.MethodPut, "/api/driver/orders/"+r.orderID+"/claim", token, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other = append(other, -1)
			case code == http.StatusOK:
				winners = append(winners, token)
			case code == http.StatusConflict:
				conflict++
			default:
				other = append(other, code)
			}
		}(token)
	}
	close(start)
	wg.Wait()
	latency := time.Since(began)

	note := fmt.Sprintf("success=%d conflict=%d other=%v", len(winners), conflict, other)
	if len(winners) != 1 || conflict != len(r.drivers)-1 {
		return Result{Status: statusFail, Latency: latency, Note: note}
	}
	r.winner = winners[0]
	for _, d := range r.drivers {
		if d != r.winner {
			r.loser = d
			break
		}
	}
	return Result{Status: statusPass, Latency: latency, Note: note}
}

func caseDeliver(ctx context.Context, r *Runner) Result {
	if r.winner == "" {
		return Result{Status: statusSkip, Note: "no claim race result"}
	}
	path := "/api/driver/orders/" + r.orderID
	if res := r.expect(ctx, http.MethodPut, path+"/status", r.winner, map[string]any{"status": "picked_up"}, http.StatusOK); res.Status != statusPass {
		return res
	}
	return r.expect(ctx, http.MethodPut, path+"/status", r.winner, map[string]any{"status": "delivered"}, http.StatusOK)
}

func caseConsistency(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	if r.orderID == "" {
		return Result{Status: statusSkip, Note: "no order"}
	}
	var status string
	var version, events int
	err := r.db.QueryRow(ctx, `SELECT status, status_version FROM orders WHERE id = $1`, r.orderID).Scan(&status, &version)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM order_state_events WHERE order_id = $1`, r.orderID).Scan(&events); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("status=%s version=%d events=%d", status, version, events)
	if status != "delivered" || version != 3 || events != 3 {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func caseRealtime(ctx context.Context, r *Runner) Result {
	if len(r.drivers) == 0 {
		return Result{Status: statusSkip, Note: "no drivers"}
	}
	token := r.drivers[0]
	code, ticket, err := r.call(ctx, http.MethodPost, "/api/realtime/ticket", token, nil)
	if err != nil || code != http.StatusOK {
		return Result{Status: statusFail, Note: fmt.Sprintf("ticket status=%d err=%v", code, err)}
	}
	userID, _ := ticket["user_id"].(string)
	tk, _ := ticket["ticket"].(string)

	wsURL := "ws" + strings.TrimPrefix(r.cfg.BaseURL, "http") + "/ws"
	client := realtime.NewClient(wsURL, nil)
	created := make(chan string, 4)
	client.On(string(realtime.KindOrderCreated), func(data json.RawMessage) {
		var v struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(data, &v) == nil {
			created <- v.ID
		}
	})
	registered := make(chan struct{}, 1)
	client.On(realtime.FrameRegistered, func(json.RawMessage) {
		select {
		case registered <- struct{}{}:
		default:
		}
	})
	if err := client.Register(realtime.RegisterMessage{UserID: types.ID(userID), Role: types.RoleDriver, Ticket: tk}); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	go func() { _ = client.Run(runCtx) }()

	select {
	case <-registered:
	case <-runCtx.Done():
		return Result{Status: statusFail, Note: "no registered frame"}
	}

	start := time.Now()
	code, body, err := r.call(ctx, http.MethodPost, "/api/orders", r.student, orderBody(r.runID+"-rt"))
	if err != nil || code != http.StatusCreated {
		return Result{Status: statusFail, Note: fmt.Sprintf("create status=%d err=%v", code, err)}
	}
	want, _ := body["id"].(string)
	for {
		select {
		case id := <-created:
			if id == want {
				return Result{Status: statusPass, Latency: time.Since(start)}
			}
		case <-runCtx.Done():
			return Result{Status: statusFail, Note: "order_created not received"}
		}
	}
}

func caseRedisBus(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	channel := "unieats:bench:" + r.runID
	bus := realtime.NewRedisBus(r.redis, channel, nil)
	subCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	got := make(chan realtime.Envelope, 1)
	if err := bus.Subscribe(subCtx, func(env realtime.Envelope) {
		select {
		case got <- env:
		default:
		}
	}); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	env, err := realtime.Event{
		Kind:    realtime.KindOrderCompleted,
		Targets: []realtime.Target{realtime.DriversTarget},
		Data:    realtime.OrderCompleted{OrderID: "bench"},
	}.Envelope()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	start := time.Now()
	if err := bus.Publish(ctx, env); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	select {
	case e := <-got:
		if e.Kind != realtime.KindOrderCompleted {
			return Result{Status: statusFail, Note: "unexpected kind " + string(e.Kind)}
		}
		return Result{Status: statusPass, Latency: time.Since(start)}
	case <-subCtx.Done():
		return Result{Status: statusFail, Note: "no message"}
	}
}

func casePerfCreate(ctx context.Context, r *Runner) Result {
	if r.student == "" {
		return Result{Status: statusSkip, Note: "setup incomplete"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; time.Now().Before(end); n++ {
				code, _, err := r.call(ctx, http.MethodPost, "/api/orders", r.student, orderBody(fmt.Sprintf("%s-perf-%d-%d", r.runID, i, n)))
				if err != nil || code != http.StatusCreated {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func orderBody(ref string) map[string]any {
	return map[string]any{
		"external_order_ref": "BENCH-" + ref,
		"location_type":      "residential",
		"delivery_building":  "Mathey College",
		"residence_hall":     "Blair",
		"delivery_room":      "301",
		"tip_amount":         2.00,
		"payment_reference":  "bench_" + ref,
	}
}

func (r *Runner) expect(ctx context.Context, method, path, token string, body any, want int) Result {
	start := time.Now()
	code, _, err := r.call(ctx, method, path, token, body)
	latency := time.Since(start)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", code, want)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
}

func (r *Runner) call(ctx context.Context, method, path, token string, body any) (int, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out, nil
}
