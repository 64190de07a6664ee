package timetablecore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	storeExists bool
	config      *PedagogicalConfig
	configErr   error
}

func (f *fakeGateway) FetchTimeGrid(ctx context.Context, schoolID int, shift string) (TimeGrid, error) {
	return TimeGrid{}, nil
}
func (f *fakeGateway) FetchClasses(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Class, error) {
	return nil, nil
}
func (f *fakeGateway) FetchDemand(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Demand, error) {
	return nil, nil
}
func (f *fakeGateway) FetchAssignments(ctx context.Context, schoolID int, classIDs []int) ([]Assignment, error) {
	return nil, nil
}
func (f *fakeGateway) FetchAvailabilities(ctx context.Context, schoolID int, shift string, teacherIDs []string) ([]AvailabilityRow, error) {
	return nil, nil
}
func (f *fakeGateway) FetchPreferences(ctx context.Context, schoolID int, shift string, teacherIDs []string) (map[string]json.RawMessage, error) {
	return nil, nil
}
func (f *fakeGateway) FetchLocks(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Lock, error) {
	return nil, nil
}
func (f *fakeGateway) FetchPedagogicalConfig(ctx context.Context, schoolID int, shift string, yearRef *int, level string) (*PedagogicalConfig, error) {
	return f.config, f.configErr
}
func (f *fakeGateway) PedagogicalConfigStoreExists(ctx context.Context) bool {
	return f.storeExists
}

func TestPedagogyLoaderDefaultsWithoutYearRef(t *testing.T) {
	loader := NewPedagogyLoader(&fakeGateway{storeExists: true}, zap.NewNop())

	cfg, defaulted := loader.Load(context.Background(), 1, "morning", nil, "EF1")

	assert.True(t, defaulted)
	assert.Equal(t, DefaultPedagogicalConfig("EF1"), cfg)
}

func TestPedagogyLoaderDefaultsWhenStoreMissing(t *testing.T) {
	year := 2026
	loader := NewPedagogyLoader(&fakeGateway{storeExists: false}, zap.NewNop())

	cfg, defaulted := loader.Load(context.Background(), 1, "morning", &year, "EF1")

	assert.True(t, defaulted)
	assert.Equal(t, DefaultPedagogicalConfig("EF1"), cfg)
}

func TestPedagogyLoaderMergesPartialStoredConfig(t *testing.T) {
	year := 2026
	stored := &PedagogicalConfig{
		RC01: RC01Rule{Mode: "hard", MaxConsecutive: 3},
	}
	loader := NewPedagogyLoader(&fakeGateway{storeExists: true, config: stored}, zap.NewNop())

	cfg, defaulted := loader.Load(context.Background(), 1, "morning", &year, "EF1")

	require.False(t, defaulted)
	assert.Equal(t, "hard", cfg.RC01.Mode)
	assert.Equal(t, 3, cfg.RC01.MaxConsecutive)
	assert.Equal(t, "soft", cfg.RC02.Mode)
	assert.Equal(t, 2, cfg.RC02.DefaultPerDay)
}

func TestPedagogyLoaderFallsBackOnFetchError(t *testing.T) {
	year := 2026
	loader := NewPedagogyLoader(&fakeGateway{storeExists: true, configErr: assertError{}}, zap.NewNop())

	cfg, defaulted := loader.Load(context.Background(), 1, "morning", &year, "EF1")

	assert.True(t, defaulted)
	assert.Equal(t, DefaultPedagogicalConfig("EF1"), cfg)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
