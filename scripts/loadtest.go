//go:build ignore

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aditya/rideshare/internal/auth"
	"github.com/aditya/rideshare/internal/config"
	"github.com/aditya/rideshare/internal/database"
	"github.com/aditya/rideshare/internal/models"
	"github.com/aditya/rideshare/internal/repository"
)

const baseURL = "http://localhost:8080"

type Stats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalLatency    int64
	MinLatency      int64
	MaxLatency      int64
}

func newStats() *Stats {
	return &Stats{MinLatency: int64(^uint64(0) >> 1)}
}

func (s *Stats) record(latency int64, ok bool) {
	atomic.AddInt64(&s.TotalRequests, 1)
	atomic.AddInt64(&s.TotalLatency, latency)
	if !ok {
		atomic.AddInt64(&s.FailedRequests, 1)
		return
	}
	atomic.AddInt64(&s.SuccessRequests, 1)

	for {
		old := atomic.LoadInt64(&s.MinLatency)
		if latency >= old || atomic.CompareAndSwapInt64(&s.MinLatency, old, latency) {
			break
		}
	}
	for {
		old := atomic.LoadInt64(&s.MaxLatency)
		if latency <= old || atomic.CompareAndSwapInt64(&s.MaxLatency, old, latency) {
			break
		}
	}
}

type tester struct {
	tokens map[string]string
}

func main() {
	rand.Seed(time.Now().UnixNano())

	fmt.Println("Rideshare Load Test")
	fmt.Println("===================")

	fmt.Println("\n1. Creating test users...")
	t, userIDs := createTestUsers(60)
	if len(userIDs) < 10 {
		log.Fatal("Failed to create test data")
	}
	fmt.Printf("Created %d users\n", len(userIDs))

	// A third of the users host, the rest race for seats
	hosts := userIDs[:len(userIDs)/3]
	riders := userIDs[len(hosts):]

	fmt.Printf("\n2. Testing Ride Creation (%d rides, 10 concurrent)...\n", len(hosts))
	stats, rideIDs := t.testRideCreation(hosts, 10)
	printStats("Ride Creation", stats)

	fmt.Printf("\n3. Testing Seat Contention (%d riders, 25 concurrent)...\n", len(riders))
	stats = t.testJoinContention(riders, rideIDs, 25)
	printStats("Join Contention", stats)
	t.checkSeats(hosts[0], rideIDs)

	fmt.Println("\n4. Testing Open Ride Listing (10 seconds)...")
	stats = t.testListing(userIDs, 10*time.Second)
	printStats("Listing", stats)

	fmt.Println("\nLoad test completed!")
}

// createTestUsers writes users straight to the database, since the API has
// no sign-up route, and signs a token for each.
func createTestUsers(n int) (*tester, []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db.DB)
	jwtService := auth.NewJWTService(cfg.JWTSecret, 60)

	t := &tester{tokens: make(map[string]string)}
	userIDs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		gender := models.GenderFemale
		if i%2 == 0 {
			gender = models.GenderMale
		}
		user := &models.User{
			Email:     fmt.Sprintf("loadtest.%d.%d@example.com", time.Now().UnixNano(), i),
			FirstName: "LoadTest",
			LastName:  fmt.Sprintf("User%d", i),
			Gender:    &gender,
		}
		if err := userRepo.Create(context.Background(), user); err != nil {
			continue
		}
		token, err := jwtService.GenerateToken(user.ID)
		if err != nil {
			continue
		}
		t.tokens[user.ID] = token
		userIDs = append(userIDs, user.ID)
	}
	return t, userIDs
}

func (t *tester) do(method, path, userID string, payload interface{}, idempotencyKey string) (int, []byte, int64, error) {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewBuffer(data)
	}

	req, _ := http.NewRequest(method, baseURL+path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.tokens[userID])
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return 0, nil, latency, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, latency, err
}

func (t *tester) testRideCreation(hosts []string, concurrency int) (*Stats, []string) {
	stats := newStats()
	var wg sync.WaitGroup
	var mu sync.Mutex
	rideIDs := make([]string, 0, len(hosts))
	semaphore := make(chan struct{}, concurrency)

	for i, hostID := range hosts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(idx int, hostID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			ride := map[string]interface{}{
				"vehicle_type":   models.VehicleTypeCar,
				"pickup":         map[string]string{"name": fmt.Sprintf("Pickup %d", idx)},
				"destination":    map[string]string{"name": fmt.Sprintf("Destination %d", idx)},
				"departure_time": time.Now().Add(time.Hour).Format(time.RFC3339),
				"total_fare":     300,
				"is_female_only": false,
			}

			status, data, latency, err := t.do("POST", "/v1/rides", hostID, ride,
				fmt.Sprintf("load-test-ride-%d-%d", idx, time.Now().UnixNano()))
			ok := err == nil && status == http.StatusCreated
			stats.record(latency, ok)
			if !ok {
				return
			}

			var created struct {
				ID string `json:"id"`
			}
			if json.Unmarshal(data, &created) == nil && created.ID != "" {
				mu.Lock()
				rideIDs = append(rideIDs, created.ID)
				mu.Unlock()
			}
		}(i, hostID)
	}

	wg.Wait()
	return stats, rideIDs
}

// testJoinContention sends every rider at a small set of rides at once.
// Rejections for full rides count as successes.
func (t *tester) testJoinContention(riders, rideIDs []string, concurrency int) *Stats {
	stats := newStats()
	if len(rideIDs) == 0 {
		return stats
	}
	targets := rideIDs
	if len(targets) > 3 {
		targets = targets[:3]
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)
	for _, riderID := range riders {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(riderID, rideID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			status, _, latency, err := t.do("POST", "/v1/rides/"+rideID+"/join", riderID, nil, "")
			stats.record(latency, err == nil && (status == http.StatusOK || status == http.StatusBadRequest))
		}(riderID, targets[rand.Intn(len(targets))])
	}

	wg.Wait()
	return stats
}

func (t *tester) checkSeats(viewerID string, rideIDs []string) {
	for _, rideID := range rideIDs {
		status, data, _, err := t.do("GET", "/v1/rides/"+rideID, viewerID, nil, "")
		if err != nil || status != http.StatusOK {
			continue
		}
		var ride struct {
			SeatsAvailable int   `json:"seats_available"`
			Members        []any `json:"members"`
		}
		if json.Unmarshal(data, &ride) != nil {
			continue
		}
		if ride.SeatsAvailable < 0 || ride.SeatsAvailable+len(ride.Members) != models.MaxSeats(models.VehicleTypeCar) {
			fmt.Printf("  SEAT MISMATCH on %s: seats=%d members=%d\n", rideID, ride.SeatsAvailable, len(ride.Members))
		}
	}
}

func (t *tester) testListing(userIDs []string, duration time.Duration) *Stats {
	stats := newStats()
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					userID := userIDs[rand.Intn(len(userIDs))]
					status, _, latency, err := t.do("GET", "/v1/rides", userID, nil, "")
					stats.record(latency, err == nil && status == http.StatusOK)
					time.Sleep(10 * time.Millisecond)
				}
			}
		}()
	}

	time.Sleep(duration)
	close(done)
	wg.Wait()

	return stats
}

func printStats(name string, stats *Stats) {
	avgLatency := float64(0)
	successRate := float64(0)
	if stats.TotalRequests > 0 {
		avgLatency = float64(stats.TotalLatency) / float64(stats.TotalRequests)
		successRate = float64(stats.SuccessRequests) / float64(stats.TotalRequests) * 100
	}

	fmt.Printf("\n%s Results:\n", name)
	fmt.Printf("  Total Requests:   %d\n", stats.TotalRequests)
	fmt.Printf("  Successful:       %d\n", stats.SuccessRequests)
	fmt.Printf("  Failed:           %d\n", stats.FailedRequests)
	fmt.Printf("  Success Rate:     %.2f%%\n", successRate)
	fmt.Printf("  Avg Latency:      %.2f ms\n", avgLatency)
	if stats.MinLatency != int64(^uint64(0)>>1) {
		fmt.Printf("  Min Latency:      %d ms\n", stats.MinLatency)
	}
	fmt.Printf("  Max Latency:      %d ms\n", stats.MaxLatency)
}
