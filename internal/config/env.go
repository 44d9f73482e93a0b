package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"routeopt/internal/logging"
)

// envOr retrieves an environment variable and parses it. When the variable is
// unset or malformed the current value is kept.
func envOr[T any](key string, current T, parser func(string) (T, error), logger logr.Logger) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		logger.V(logging.DEBUG).Info("Environment variable not set, keeping value", "key", key, "value", current)
		return current
	}
	v, err := parser(raw)
	if err != nil {
		logger.Info(fmt.Sprintf("Failed to parse environment variable as %s, keeping value", reflect.TypeOf(current)),
			"key", key, "rawValue", raw, "error", err, "value", current)
		return current
	}
	logger.V(logging.VERBOSE).Info("Loaded environment variable", "key", key, "value", v)
	return v
}

func envInt(key string, current int, logger logr.Logger) int {
	return envOr(key, current, strconv.Atoi, logger)
}

func envInt64(key string, current int64, logger logr.Logger) int64 {
	return envOr(key, current, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }, logger)
}

func envFloat(key string, current float64, logger logr.Logger) float64 {
	return envOr(key, current, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }, logger)
}

func envBool(key string, current bool, logger logr.Logger) bool {
	return envOr(key, current, strconv.ParseBool, logger)
}

func envDuration(key string, current time.Duration, logger logr.Logger) time.Duration {
	return envOr(key, current, time.ParseDuration, logger)
}

func envString(key string, current string, logger logr.Logger) string {
	return envOr(key, current, func(s string) (string, error) { return s, nil }, logger)
}

// envList reads a comma separated list, dropping empty elements.
func envList(key string, current []string, logger logr.Logger) []string {
	return envOr(key, current, func(s string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}, logger)
}
