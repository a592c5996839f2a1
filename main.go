package main

import (
	"PawArena/config"
	_ "PawArena/config/swagger"
	"PawArena/middleware"
	"PawArena/routes"
	"PawArena/services/battle"
	"PawArena/services/redis"
	"PawArena/services/socket_io"
	socketio_types "PawArena/services/socket_io/types"
	"PawArena/services/sync"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// @title PawArena API
// @version 1.0
// @description Gin-Gonic server for the PawArena battle matchmaking API
// @BasePath /
func main() {
	godotenv.Load()
	log.Println("Setting up server...")

	if os.Getenv("PROD") == "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := config.ConnectGORM()
	if err != nil {
		log.Fatalf("Error connecting to PostgreSQL: %v", err)
	}
	log.Println("GORM Connected")

	// Only migrate in development or during deployment
	if os.Getenv("MIGRATE_POSTGRES") == "true" {
		log.Println("Migrating PostgreSQL database...")
		if err := config.MigrateDatabase(gormDB); err != nil {
			log.Printf("Warning: Database migration failed: %v", err)
			// Continue execution even if migration fails
		} else {
			log.Println("Database migrated successfully")
		}
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("Error reading GORM PostgreSQL instance: %v", err)
	}
	defer sqlDB.Close()

	redisClient, err := config.Connect_redis()
	if err != nil {
		log.Fatalf("Error connecting to Redis: %v", err)
	}
	log.Println("Connection to Redis successful")
	defer redis.CloseRedis(redisClient)

	r := gin.Default()

	middleware.SetUpMiddleware(r)

	// Battle coordination wiring: the store writes to PostgreSQL and publishes
	// session events through Redis; the coordinator reacts to those events and
	// pushes state transitions to clients over socket.io.
	sio := &socket_io.MySocketServer{}
	store := battle.NewStore(gormDB, redisClient)
	coordinator := battle.NewCoordinator(store, redisClient,
		(*socketio_types.SocketServer)(sio))

	syncManager := sync.NewSyncManager(redisClient, sqlDB)

	routes.SetupRoutes(r, gormDB, redisClient, coordinator)

	sio.Start(r, gormDB, coordinator, syncManager)

	// Optional sweeper that cancels waiting sessions nobody can fill anymore
	if raw := os.Getenv("QUEUE_STALE_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			log.Printf("Warning: invalid QUEUE_STALE_MINUTES value %q, sweeper disabled", raw)
		} else {
			scheduler, err := battle.StartStaleQueueSweeper(store, time.Duration(minutes)*time.Minute)
			if err != nil {
				log.Printf("Warning: could not start stale queue sweeper: %v", err)
			} else {
				defer scheduler.Shutdown()
			}
		}
	}

	// Configure port
	port := os.Getenv("PORT")
	if port == "" && os.Getenv("USE_HTTPS") == "true" {
		port = "443"
	} else if port == "" {
		port = "8080"
	}

	if os.Getenv("USE_HTTPS") == "true" {
		certFile := os.Getenv("TLS_CERT_FILE")
		keyFile := os.Getenv("TLS_KEY_FILE")

		// Start server
		if err := r.RunTLS(":"+port, certFile, keyFile); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	} else {
		if err := r.Run(":" + port); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}
}
