//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/aditya/rideshare/internal/auth"
	"github.com/aditya/rideshare/internal/config"
	"github.com/aditya/rideshare/internal/database"
	"github.com/aditya/rideshare/internal/events"
	"github.com/aditya/rideshare/internal/models"
	"github.com/aditya/rideshare/internal/realtime"
	"github.com/aditya/rideshare/internal/repository"
	"github.com/aditya/rideshare/internal/service"
)

var (
	firstNames = []string{"Rahul", "Priya", "Amit", "Sneha", "Vikram", "Anita", "Raj", "Neha", "Suresh", "Kavita",
		"Arun", "Deepa", "Kiran", "Meera", "Sanjay", "Ritu", "Vijay", "Pooja", "Manoj", "Swati"}
	lastNames = []string{"Kumar", "Sharma", "Patel", "Singh", "Reddy", "Rao", "Gupta", "Joshi", "Nair", "Menon"}
	places    = []string{"Campus Gate", "Airport", "Central Station", "City Mall", "Old Town", "Tech Park", "Lake View"}
	vehicles  = []string{models.VehicleTypeCar, models.VehicleTypeBike, models.VehicleTypeCNG, models.VehicleTypeTaxi}
	genders   = []string{models.GenderMale, models.GenderFemale, models.GenderOther}
)

func main() {
	rand.Seed(time.Now().UnixNano())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	// Initialize repositories and services. Nothing is listening, so chat
	// payloads go to a local hub.
	userRepo := repository.NewUserRepository(db.DB)
	rideRepo := repository.NewRideRepository(db.DB)
	chatRepo := repository.NewChatRepository(db.DB)
	users := service.NewUserService(userRepo, nil)
	emitter := service.NewSystemMessageEmitter(chatRepo, realtime.NewHub(0))
	rides := service.NewRideService(
		repository.NewTransactor(db.DB),
		rideRepo,
		repository.NewRideRequestRepository(db.DB),
		chatRepo,
		users,
		emitter,
		events.NewNopPublisher(),
	)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiryMinutes)

	// Create users
	log.Println("Creating 30 users...")
	userIDs := make([]string, 0)
	for i := 0; i < 30; i++ {
		first := firstNames[rand.Intn(len(firstNames))]
		last := lastNames[rand.Intn(len(lastNames))]
		gender := genders[rand.Intn(len(genders))]
		phone := fmt.Sprintf("98%08d", rand.Intn(100000000))

		user := &models.User{
			Email:       fmt.Sprintf("%s.%s.%d@example.com", first, last, rand.Intn(1000000)),
			FirstName:   first,
			LastName:    last,
			Gender:      &gender,
			PhoneNumber: &phone,
		}

		if err := userRepo.Create(ctx, user); err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		userIDs = append(userIDs, user.ID)
	}
	log.Printf("Created %d users", len(userIDs))
	if len(userIDs) == 0 {
		log.Fatal("No users created")
	}

	// The first third host a ride each; the rest try to join one
	hosts := userIDs[:len(userIDs)/3]
	rideIDs := make([]string, 0)
	for _, hostID := range hosts {
		fare := float64(100 + rand.Intn(400))
		femaleOnly := false
		pickup := places[rand.Intn(len(places))]
		req := &models.CreateRideRequest{
			VehicleType:   vehicles[rand.Intn(len(vehicles))],
			Pickup:        models.Place{Name: pickup},
			Destination:   models.Place{Name: places[(indexOf(places, pickup)+1)%len(places)]},
			DepartureTime: time.Now().Add(time.Duration(30+rand.Intn(240)) * time.Minute),
			TotalFare:     &fare,
			IsFemaleOnly:  &femaleOnly,
		}

		ride, err := rides.CreateRide(ctx, hostID, req)
		if err != nil {
			log.Printf("Failed to create ride: %v", err)
			continue
		}
		rideIDs = append(rideIDs, ride.ID)
	}
	log.Printf("Created %d rides", len(rideIDs))

	joined := 0
	for _, userID := range userIDs[len(hosts):] {
		if len(rideIDs) == 0 {
			break
		}
		if _, err := rides.JoinRide(ctx, rideIDs[rand.Intn(len(rideIDs))], userID); err == nil {
			joined++
		}
	}
	log.Printf("Joined %d riders", joined)

	token, err := jwtService.GenerateToken(userIDs[0])
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	// Summary
	log.Println("\n=== Seed Data Summary ===")
	log.Printf("Users created: %d", len(userIDs))
	log.Printf("Rides created: %d", len(rideIDs))
	log.Println("\nSample User ID:", userIDs[0])
	log.Println("Sample Token:", token)
	if len(rideIDs) > 0 {
		log.Println("Sample Ride ID:", rideIDs[0])
	}
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return 0
}
