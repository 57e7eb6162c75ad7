// Package ttl implements the five TTL policy types' expires_at
// materialization and the hygiene worker that sweeps expired
// breadcrumbs.
package ttl

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcrt-io/rcrt/pkg/models"
)

// datetimeConfig is ttl_config's shape for ttl_type = "datetime".
type datetimeConfig struct {
	At time.Time `json:"at"`
}

// durationConfig is ttl_config's shape for ttl_type = "duration".
type durationConfig struct {
	DurationMS int64 `json:"duration_ms"`
}

// usageConfig is ttl_config's shape for ttl_type = "usage".
type usageConfig struct {
	MaxReads int64 `json:"max_reads"`
}

// subPolicy is one entry of a "hybrid" ttl_config's policies list.
type subPolicy struct {
	Type   models.TTLType  `json:"type"`
	Config json.RawMessage `json:"config"`
}

// hybridConfig is ttl_config's shape for ttl_type = "hybrid": expiry
// fires when any sub-policy's condition is met.
type hybridConfig struct {
	Policies []subPolicy `json:"policies"`
}

// Materialize computes expires_at for a breadcrumb given its TTL policy,
// creation time, current read count, and the instant of evaluation. It is
// called on every write (ttl_type/config change) and on every read
// (read_count change), matching "materialized whenever ttl_type/config/
// read_count change."
func Materialize(ttlType models.TTLType, ttlConfig []byte, createdAt, now time.Time, readCount int64) (*time.Time, error) {
	switch ttlType {
	case models.TTLNever, "":
		return nil, nil
	case models.TTLDatetime:
		var cfg datetimeConfig
		if err := unmarshalConfig(ttlConfig, &cfg); err != nil {
			return nil, fmt.Errorf("parse datetime ttl_config: %w", err)
		}
		if cfg.At.IsZero() {
			return nil, fmt.Errorf("datetime ttl_config missing \"at\"")
		}
		return &cfg.At, nil
	case models.TTLDuration:
		var cfg durationConfig
		if err := unmarshalConfig(ttlConfig, &cfg); err != nil {
			return nil, fmt.Errorf("parse duration ttl_config: %w", err)
		}
		if cfg.DurationMS <= 0 {
			return nil, fmt.Errorf("duration ttl_config requires positive duration_ms")
		}
		expires := createdAt.Add(time.Duration(cfg.DurationMS) * time.Millisecond)
		return &expires, nil
	case models.TTLUsage:
		var cfg usageConfig
		if err := unmarshalConfig(ttlConfig, &cfg); err != nil {
			return nil, fmt.Errorf("parse usage ttl_config: %w", err)
		}
		if cfg.MaxReads <= 0 {
			return nil, fmt.Errorf("usage ttl_config requires positive max_reads")
		}
		if readCount >= cfg.MaxReads {
			return &now, nil
		}
		return nil, nil
	case models.TTLHybrid:
		var cfg hybridConfig
		if err := unmarshalConfig(ttlConfig, &cfg); err != nil {
			return nil, fmt.Errorf("parse hybrid ttl_config: %w", err)
		}
		var earliest *time.Time
		for _, p := range cfg.Policies {
			if p.Type == models.TTLHybrid {
				return nil, fmt.Errorf("hybrid ttl_config cannot nest another hybrid policy")
			}
			sub, err := Materialize(p.Type, p.Config, createdAt, now, readCount)
			if err != nil {
				return nil, fmt.Errorf("sub-policy %q: %w", p.Type, err)
			}
			if sub == nil {
				continue
			}
			if earliest == nil || sub.Before(*earliest) {
				earliest = sub
			}
		}
		return earliest, nil
	default:
		return nil, fmt.Errorf("unknown ttl_type %q", ttlType)
	}
}

func unmarshalConfig(raw []byte, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty ttl_config")
	}
	return json.Unmarshal(raw, out)
}
