// Package env resolves configuration from a .env file with the process
// environment as fallback.
package env

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Env holds the values read from the .env file. Nil when none was found.
var Env map[string]string

// envFiles are tried in order, relative to the working directory of cmd/* binaries.
var envFiles = []string{".env", "../../.env", "../../../.env"}

func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses key as an integer and returns def when unset or malformed.
func GetEnvInt(key string, def int) int {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[Env] %s=%q is not an integer, using %d", key, raw, def)
		return def
	}
	return n
}

// Require returns the value of every key, or an error naming all missing keys.
func Require(keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	var missing []string
	for _, k := range keys {
		v := GetEnv(k, "")
		if v == "" {
			missing = append(missing, k)
			continue
		}
		out[k] = v
	}
	if len(missing) > 0 {
		return out, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// SetupEnvFile loads the first .env file found. Containers without one run on
// the process environment alone.
func SetupEnvFile() {
	for _, f := range envFiles {
		values, err := godotenv.Read(f)
		if err == nil {
			Env = values
			log.Printf("[Env] loaded %s (%d keys)", f, len(values))
			return
		}
	}
	Env = nil
	log.Printf("[Env] no .env file found, using process environment")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
