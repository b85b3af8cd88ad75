package main

import (
	"context"
	"log"
	"net/http"

	"github.com/Ritabrata777/CivicLens/config"
	"github.com/Ritabrata777/CivicLens/controllers"
	"github.com/Ritabrata777/CivicLens/geo"
	"github.com/Ritabrata777/CivicLens/lifecycle"
	"github.com/Ritabrata777/CivicLens/middlewares"
	"github.com/Ritabrata777/CivicLens/routes"
	"github.com/Ritabrata777/CivicLens/store"
	"github.com/Ritabrata777/CivicLens/verify"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.StoreBackend == "bolt" {
		log.Printf("Using embedded store at %s", cfg.BoltPath)
		return store.NewBoltStore(cfg.BoltPath)
	}

	db, err := config.ConnectMongo(cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, err
	}
	return store.NewMongoStore(context.Background(), db)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close(context.Background())

	orchestrator := verify.NewOrchestrator(verify.Config{
		Python:      cfg.PythonExecutable,
		ScriptDir:   cfg.ScriptDir,
		TempDir:     cfg.VerifyTempDir,
		Timeout:     cfg.VerifyTimeout,
		MongoURI:    cfg.MongoURI,
		MongoDBName: cfg.MongoDBName,
	})

	var geocoder geo.Geocoder
	if cfg.MapTilerAPIKey != "" {
		geocoder = geo.NewMapTiler(cfg.MapTilerAPIKey)
	}

	findDuplicates := func(ctx context.Context, issueID string) (int, error) {
		matches, err := orchestrator.DetectDuplicates(ctx, issueID)
		if err != nil {
			return 0, err
		}
		return len(matches), nil
	}

	engine := lifecycle.NewEngine(st, geocoder, findDuplicates)

	var createLimiter gin.HandlerFunc
	if cfg.RedisAddr != "" {
		if err := config.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword); err != nil {
			log.Printf("Redis unavailable, issue rate limiting disabled: %v", err)
		} else {
			createLimiter = middlewares.IssueRateLimiter(cfg.IssueRateLimit)
		}
	}

	r := gin.Default()

	routes.AuthRoutes(r, controllers.NewAuthController(st))
	routes.IssueRoutes(r, controllers.NewIssueController(engine, st), createLimiter)
	routes.VerifyRoutes(r, controllers.NewVerifyController(orchestrator, cfg.TrafficStrict))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
