package ttl

import (
	"testing"
	"time"

	"github.com/rcrt-io/rcrt/pkg/models"
)

var created = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
var now = created.Add(time.Hour)

func TestMaterializeNeverReturnsNil(t *testing.T) {
	got, err := Materialize(models.TTLNever, nil, created, now, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil expiry, got %v", got)
	}
}

func TestMaterializeDatetime(t *testing.T) {
	at := created.Add(48 * time.Hour)
	cfg := []byte(`{"at":"` + at.Format(time.RFC3339) + `"}`)
	got, err := Materialize(models.TTLDatetime, cfg, created, now, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got)
	}
}

func TestMaterializeDuration(t *testing.T) {
	cfg := []byte(`{"duration_ms":3600000}`)
	got, err := Materialize(models.TTLDuration, cfg, created, now, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := created.Add(time.Hour)
	if got == nil || !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMaterializeUsageNotYetTriggered(t *testing.T) {
	cfg := []byte(`{"max_reads":5}`)
	got, err := Materialize(models.TTLUsage, cfg, created, now, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestMaterializeUsageTriggered(t *testing.T) {
	cfg := []byte(`{"max_reads":5}`)
	got, err := Materialize(models.TTLUsage, cfg, created, now, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Equal(now) {
		t.Fatalf("expected %v, got %v", now, got)
	}
}

func TestMaterializeHybridTakesEarliestTrigger(t *testing.T) {
	durCfg := []byte(`{"duration_ms":7200000}`) // created + 2h
	cfg := []byte(`{"policies":[{"type":"duration","config":` + string(durCfg) + `},{"type":"usage","config":{"max_reads":1}}]}`)
	got, err := Materialize(models.TTLHybrid, cfg, created, now, 1)
	if err != nil {
		t.Fatal(err)
	}
	// usage policy triggers immediately (at `now`), duration triggers at created+2h (later) — usage wins.
	if got == nil || !got.Equal(now) {
		t.Fatalf("expected usage trigger at %v, got %v", now, got)
	}
}

func TestMaterializeHybridRejectsNestedHybrid(t *testing.T) {
	cfg := []byte(`{"policies":[{"type":"hybrid","config":{}}]}`)
	_, err := Materialize(models.TTLHybrid, cfg, created, now, 0)
	if err == nil {
		t.Fatal("expected error for nested hybrid policy")
	}
}

func TestMaterializeUnknownType(t *testing.T) {
	_, err := Materialize(models.TTLType("bogus"), nil, created, now, 0)
	if err == nil {
		t.Fatal("expected error for unknown ttl type")
	}
}
