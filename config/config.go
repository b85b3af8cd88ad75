package config

import (
	"os"
	"strconv"
	"time"
)

// Config collects every environment-driven setting in one place.
type Config struct {
	Port         string
	StoreBackend string // "mongo" or "bolt"
	MongoURI     string
	MongoDBName  string
	BoltPath     string

	RedisAddr     string
	RedisPassword string

	MapTilerAPIKey string

	PythonExecutable string
	ScriptDir        string
	VerifyTempDir    string
	VerifyTimeout    time.Duration
	TrafficStrict    bool

	IssueRateLimit int
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads the configuration from the environment. Defaults keep the
// service runnable on a laptop with just a store configured.
func Load() Config {
	timeoutSecs, err := strconv.Atoi(getenv("VERIFY_TIMEOUT_SECONDS", "120"))
	if err != nil || timeoutSecs <= 0 {
		timeoutSecs = 120
	}
	rateLimit, err := strconv.Atoi(getenv("ISSUE_RATE_LIMIT", "10"))
	if err != nil || rateLimit <= 0 {
		rateLimit = 10
	}

	return Config{
		Port:             getenv("PORT", "8080"),
		StoreBackend:     getenv("STORE_BACKEND", "mongo"),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDBName:      getenv("MONGODB_DB_NAME", "civiclens"),
		BoltPath:         getenv("BOLT_PATH", "civiclens.db"),
		RedisAddr:        os.Getenv("REDIS_ADDRESS"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		MapTilerAPIKey:   os.Getenv("MAPTILER_API_KEY"),
		PythonExecutable: getenv("PYTHON_EXECUTABLE", "python3"),
		ScriptDir:        getenv("ML_SCRIPT_DIR", "ml/scripts"),
		VerifyTempDir:    os.Getenv("VERIFY_TEMP_DIR"),
		VerifyTimeout:    time.Duration(timeoutSecs) * time.Second,
		TrafficStrict:    os.Getenv("TRAFFIC_DETECTION_STRICT") == "true",
		IssueRateLimit:   rateLimit,
	}
}
