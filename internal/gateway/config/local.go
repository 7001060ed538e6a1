package config

import (
	"os"
	"strings"
)

// localDatabaseURL is the docker-compose default for APP_ENV=local; an
// explicit empty EDUCORE_LOCAL_DATABASE_URL opts back into the memory store.
func localDatabaseURL() string {
	if raw, ok := os.LookupEnv("EDUCORE_LOCAL_DATABASE_URL"); ok {
		return strings.TrimSpace(raw)
	}
	return ""
}
