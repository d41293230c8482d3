package featureflags

import (
	"os"
	"strings"
)

// Flags understood by the service.
const (
	// RentReminders runs the periodic rent-reminder worker.
	RentReminders = "rent_reminders"
	// KafkaEvents publishes ledger events to Kafka when brokers are configured.
	KafkaEvents = "kafka_events"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	return EnabledOr(name, false)
}

// EnabledOr is Enabled with a default for when the variable is unset or
// unrecognised.
func EnabledOr(name string, def bool) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
