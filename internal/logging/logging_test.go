package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

func TestSeverities(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core)).With(zap.String("system", "subway"))

	l.Info("routine")
	l.Warn("mismatch")
	l.Critical("Switch 3 failure at tick 9")

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, expected 3", len(entries))
	}
	levels := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != levels[i] {
			t.Errorf("entry %d level = %v, expected %v", i, e.Level, levels[i])
		}
		if e.ContextMap()["system"] != "subway" {
			t.Errorf("entry %d lost the system field", i)
		}
	}
	if entries[2].ContextMap()["severity"] != "critical" {
		t.Error("critical entries must carry severity=critical")
	}
}

func TestMessageFormats(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := New(zap.New(core))

	l.Arrival(12, 10, 7, "Bedford Av", 3)
	l.Departure(14, 13, 7, "Bedford Av", 3)
	l.SignalChange(5, 4, transit.Yellow)
	l.Spawn(1, 0, 7, transit.Uptown)
	l.Despawn(30, 28, 7, transit.Uptown)

	want := []string{
		"Train 7 arrived at station Bedford Av on platform 3 (actual tick: 12, planned tick: 10)",
		"Train 7 is departing station Bedford Av from platform 3 (actual tick: 14, planned tick: 13)",
		"Signal 4 changed state to YELLOW at tick 5",
		"Train 7 is leaving the yard (actual tick: 1, planned tick: 0)",
		"Train 7 is arriving at yard (actual tick: 30, planned tick: 28)",
	}
	entries := logs.AllUntimed()
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, expected %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Errorf("message %d = %q, expected %q", i, e.Message, want[i])
		}
	}
}

func TestBuild(t *testing.T) {
	if _, err := Build("info", "json"); err != nil {
		t.Errorf("Build(info, json) failed: %v", err)
	}
	if _, err := Build("loud", "json"); err == nil {
		t.Error("Build should reject unknown levels")
	}
	if _, err := Build("info", "xml"); err == nil {
		t.Error("Build should reject unknown formats")
	}
}
