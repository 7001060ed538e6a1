// Package config assembles runtime configuration from flags, the process
// environment, and an optional .env file. Precedence is flag, then
// environment, then the local-development defaults.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// DatabaseURL selects the Postgres store; empty falls back to the
	// seeded in-memory store.
	DatabaseURL string

	// FlagDBPath is the SQLite file for the integrity-flag audit store;
	// empty keeps flags in memory.
	FlagDBPath string

	// CatalogPath points at an optional models.yaml; empty uses the
	// built-in catalog.
	CatalogPath string

	// FakeLLM swaps every model client for the deterministic fake, for
	// offline runs and smoke tests.
	FakeLLM bool

	UsageLedgerPath string

	Materials MaterialsConfig
	Assistant AssistantConfig
	Guard     GuardConfig
}

type MaterialsConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type AssistantConfig struct {
	MaxRounds     int
	CallTimeout   time.Duration
	PoolSize      int
	MaxQueryRunes int

	// IdentityCalls overrides the capability → parameter map used for
	// identity injection on direct calls. Nil keeps the built-in set.
	IdentityCalls map[string]string
}

type GuardConfig struct {
	Enabled  bool
	FailMode string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:            *port,
		Env:             env,
		DatabaseURL:     resolveDatabaseURL(env),
		FlagDBPath:      strings.TrimSpace(os.Getenv("EDUCORE_FLAGS_DB")),
		CatalogPath:     strings.TrimSpace(os.Getenv("EDUCORE_MODELS")),
		FakeLLM:         envBool("EDUCORE_FAKE_LLM", false),
		UsageLedgerPath: strings.TrimSpace(os.Getenv("EDUCORE_USAGE_LEDGER")),
		Materials:       loadMaterialsConfig(env),
		Assistant:       loadAssistantConfig(),
		Guard:           loadGuardConfig(),
	}, nil
}

func loadMaterialsConfig(env string) MaterialsConfig {
	endpoint := resolveMaterialsEndpoint(env)
	return MaterialsConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("MATERIALS_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("MATERIALS_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("MATERIALS_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("MATERIALS_S3_BUCKET")), "educore-materials"),
		UseSSL:    resolveMaterialsUseSSL(env),
	}
}

func loadAssistantConfig() AssistantConfig {
	return AssistantConfig{
		MaxRounds:     envInt("EDUCORE_ASSISTANT_MAX_ROUNDS", 0),
		CallTimeout:   envDuration("EDUCORE_CALL_TIMEOUT", 15*time.Second),
		PoolSize:      envInt("EDUCORE_POOL_SIZE", 4),
		MaxQueryRunes: envInt("EDUCORE_MAX_QUERY_RUNES", 0),
		IdentityCalls: parseIdentityCalls(os.Getenv("EDUCORE_IDENTITY_CALLS")),
	}
}

func loadGuardConfig() GuardConfig {
	return GuardConfig{
		Enabled:  envBool("EDUCORE_GUARD", true),
		FailMode: strings.TrimSpace(os.Getenv("EDUCORE_GUARD_FAIL_MODE")),
	}
}

func resolveDatabaseURL(env string) string {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		return dsn
	}
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return localDatabaseURL()
	}
	return ""
}

func resolveMaterialsEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("MATERIALS_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("MATERIALS_S3_ENDPOINT"))
}

func resolveMaterialsUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	return envBool("MATERIALS_S3_USE_SSL", true)
}

// parseIdentityCalls reads "name=param,name=param" pairs; a bare name maps
// to user_id. Empty input returns nil so the assistant keeps its default.
func parseIdentityCalls(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, param, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !found || strings.TrimSpace(param) == "" {
			param = "user_id"
		}
		out[name] = strings.TrimSpace(param)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
