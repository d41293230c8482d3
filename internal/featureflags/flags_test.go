package featureflags

import "testing"

func TestEnabled(t *testing.T) {
	cases := map[string]bool{"true": true, "YES": true, "1": true, "on": true, "false": false, "": false, "maybe": false}
	for value, want := range cases {
		t.Setenv("FLAG_RENT_REMINDERS", value)
		if got := Enabled(RentReminders); got != want {
			t.Fatalf("Enabled with %q = %v, want %v", value, got, want)
		}
	}
}

func TestEnabledOrDefault(t *testing.T) {
	t.Setenv("FLAG_KAFKA_EVENTS", "")
	if !EnabledOr(KafkaEvents, true) {
		t.Fatal("expected default to apply when unset")
	}
	t.Setenv("FLAG_KAFKA_EVENTS", "off")
	if EnabledOr(KafkaEvents, true) {
		t.Fatal("expected explicit off to win over default")
	}
}
