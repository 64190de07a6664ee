package timetablecore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	grid          TimeGrid
	classes       []Class
	demand        []Demand
	assignments   []Assignment
	availability  []AvailabilityRow
	locks         []Lock
	storeExists   bool
}

func (s *stubGateway) FetchTimeGrid(ctx context.Context, schoolID int, shift string) (TimeGrid, error) {
	return s.grid, nil
}
func (s *stubGateway) FetchClasses(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Class, error) {
	return s.classes, nil
}
func (s *stubGateway) FetchDemand(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Demand, error) {
	return s.demand, nil
}
func (s *stubGateway) FetchAssignments(ctx context.Context, schoolID int, classIDs []int) ([]Assignment, error) {
	return s.assignments, nil
}
func (s *stubGateway) FetchAvailabilities(ctx context.Context, schoolID int, shift string, teacherIDs []string) ([]AvailabilityRow, error) {
	return s.availability, nil
}
func (s *stubGateway) FetchPreferences(ctx context.Context, schoolID int, shift string, teacherIDs []string) (map[string]json.RawMessage, error) {
	return nil, nil
}
func (s *stubGateway) FetchLocks(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Lock, error) {
	return s.locks, nil
}
func (s *stubGateway) FetchPedagogicalConfig(ctx context.Context, schoolID int, shift string, yearRef *int, level string) (*PedagogicalConfig, error) {
	return nil, nil
}
func (s *stubGateway) PedagogicalConfigStoreExists(ctx context.Context) bool {
	return s.storeExists
}

func TestPayloadBuilderAssemblesSortedInstance(t *testing.T) {
	gw := &stubGateway{
		grid: fiveDayGrid(6),
		classes: []Class{
			{ID: "2"}, {ID: "1"},
		},
		demand: []Demand{
			{ClassID: "2", SubjectID: "math", WeeklyLessons: 2},
			{ClassID: "1", SubjectID: "science", WeeklyLessons: 3},
		},
		assignments: []Assignment{
			{TeacherID: "teacher-b", ClassID: "2", SubjectID: "math"},
			{TeacherID: "teacher-a", ClassID: "1", SubjectID: "science"},
		},
		availability: []AvailabilityRow{
			{TeacherID: "teacher-a", Day: 1, PeriodOrdem: 1, Status: "free"},
		},
	}
	builder := NewPayloadBuilder(gw, NewPedagogyLoader(gw, nil), nil)

	instance, err := builder.Build(context.Background(), BuildRequest{
		SchoolID: 7,
		Shift:    "Morning",
		ClassIDs: []int{1, 2},
	})

	require.NoError(t, err)
	assert.Equal(t, "7", instance.SchoolID)
	assert.Equal(t, "morning", instance.Shift)
	require.Len(t, instance.Classes, 2)
	assert.Equal(t, "1", instance.Classes[0].ID)
	assert.Equal(t, "2", instance.Classes[1].ID)

	require.Len(t, instance.Demand, 2)
	assert.Equal(t, "1", instance.Demand[0].ClassID)
	assert.Equal(t, "2", instance.Demand[1].ClassID)

	require.Len(t, instance.Teachers, 2)
	assert.Equal(t, "teacher-a", instance.Teachers[0].ID)
	assert.Equal(t, "teacher-b", instance.Teachers[1].ID)

	require.Len(t, instance.Subjects, 2)
	assert.Equal(t, "math", instance.Subjects[0].ID)
	assert.Equal(t, "science", instance.Subjects[1].ID)

	assert.True(t, instance.ConfigDefaulted)
	assert.True(t, instance.Availability["teacher-a"][1][1])
}

func TestPayloadBuilderResolvesClassIDsWhenRequestOmitsThem(t *testing.T) {
	gw := &stubGateway{
		grid:    fiveDayGrid(6),
		classes: []Class{{ID: "9"}},
	}
	builder := NewPayloadBuilder(gw, NewPedagogyLoader(gw, nil), nil)

	instance, err := builder.Build(context.Background(), BuildRequest{SchoolID: 1, Shift: "morning"})

	require.NoError(t, err)
	assert.Equal(t, "9", instance.Classes[0].ID)
}
