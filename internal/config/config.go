package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	S3Endpoint     string // custom S3 endpoint (empty for AWS)
	S3Region       string // S3 region
	S3AccessKey    string // S3 access key id
	S3SecretKey    string // S3 secret access key
	S3Bucket       string // bucket holding uploaded room photos
	S3PublicBase   string // public base URL for stored objects
	S3UsePathStyle bool   // path-style addressing for MinIO-style endpoints

	ModelAPIBase    string // base URL of the external image-model API
	ModelAPIKey     string // bearer key for the image-model API
	ModelTimeoutSec int    // request timeout for model calls in seconds

	SignupGrant int // tokens granted to a freshly registered user
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Optional variables
// fall back to sensible defaults so local development needs only the
// database, storage and JWT settings.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),      // environment (dev/test/prod)
		Port:           must("APP_PORT"),     // port to bind the HTTP server
		DBUser:         must("DB_USER"),      // database user
		DBPass:         os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:         must("DB_HOST"),      // database host
		DBPort:         must("DB_PORT"),      // database port
		DBName:         must("DB_NAME"),      // database name
		JWTSecret:      must("JWT_SECRET"),   // secret used for signing JWTs
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
		BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor

		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       envDefault("S3_REGION", "us-east-1"),
		S3AccessKey:    must("S3_ACCESS_KEY"),
		S3SecretKey:    must("S3_SECRET_KEY"),
		S3Bucket:       envDefault("S3_BUCKET", "room-photos"),
		S3PublicBase:   must("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle: os.Getenv("S3_USE_PATH_STYLE") == "true",

		ModelAPIBase:    must("MODEL_API_BASE_URL"),
		ModelAPIKey:     must("MODEL_API_KEY"),
		ModelTimeoutSec: intDefault("MODEL_TIMEOUT_SEC", 120),

		SignupGrant: intDefault("SIGNUP_TOKEN_GRANT", 1),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envDefault returns the variable's value or the given default when unset.
func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// intDefault returns the variable parsed as int or the default when the
// variable is unset or not a number.
func intDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
