package timetablecore

import (
	"context"

	"go.uber.org/zap"
)

// PedagogyLoader resolves the PedagogicalConfig in effect for a
// (school, shift, year, level) tuple, always returning a usable value.
type PedagogyLoader struct {
	gateway Gateway
	logger  *zap.Logger
}

// NewPedagogyLoader constructs a loader bound to gateway.
func NewPedagogyLoader(gateway Gateway, logger *zap.Logger) *PedagogyLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PedagogyLoader{gateway: gateway, logger: logger}
}

// Load returns the effective config plus whether it fell back to defaults.
// A nil yearRef always defaults: pedagogical configs are scoped per year.
func (l *PedagogyLoader) Load(ctx context.Context, schoolID int, shift string, yearRef *int, level string) (PedagogicalConfig, bool) {
	defaults := DefaultPedagogicalConfig(level)
	if yearRef == nil {
		return defaults, true
	}
	if !l.gateway.PedagogicalConfigStoreExists(ctx) {
		return defaults, true
	}

	stored, err := l.gateway.FetchPedagogicalConfig(ctx, schoolID, shift, yearRef, level)
	if err != nil {
		l.logger.Warn("pedagogical config fetch failed, using defaults",
			zap.Int("schoolId", schoolID), zap.String("shift", shift), zap.Error(err))
		return defaults, true
	}
	if stored == nil {
		return defaults, true
	}
	return mergePedagogicalConfig(defaults, *stored), false
}

// mergePedagogicalConfig layers a partial stored config on top of defaults.
// A zero MaxConsecutive/DefaultPerDay is treated as "not set" rather than
// an intentional zero cap, since a cap of zero would forbid the subject
// outright and no caller has a path to express that today.
func mergePedagogicalConfig(defaults, stored PedagogicalConfig) PedagogicalConfig {
	merged := defaults
	if stored.RC01.Mode != "" {
		merged.RC01.Mode = stored.RC01.Mode
	}
	if stored.RC01.MaxConsecutive > 0 {
		merged.RC01.MaxConsecutive = stored.RC01.MaxConsecutive
	}
	if stored.RC02.Mode != "" {
		merged.RC02.Mode = stored.RC02.Mode
	}
	if stored.RC02.DefaultPerDay > 0 {
		merged.RC02.DefaultPerDay = stored.RC02.DefaultPerDay
	}
	merged.RC02.StrictCapMock = stored.RC02.StrictCapMock
	if len(stored.RC02.PerSubject) > 0 {
		merged.RC02.PerSubject = make(map[string]int, len(stored.RC02.PerSubject))
		for k, v := range stored.RC02.PerSubject {
			merged.RC02.PerSubject[k] = v
		}
	}
	return merged
}
