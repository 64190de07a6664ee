package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu-scheduling/campus-timetable/internal/dto"
)

func TestParseClassIDsFromCommaSeparatedString(t *testing.T) {
	ids, err := ParseClassIDs("1, 2,3")

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestParseClassIDsFromIntSlice(t *testing.T) {
	ids, err := ParseClassIDs([]int{4, 5})

	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, ids)
}

func TestParseClassIDsFromJSONNumberSlice(t *testing.T) {
	ids, err := ParseClassIDs([]any{float64(1), float64(2)})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids)
}

func TestParseClassIDsFromMixedAnySlice(t *testing.T) {
	ids, err := ParseClassIDs([]any{float64(1), "2"})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids)
}

func TestParseClassIDsRejectsNil(t *testing.T) {
	_, err := ParseClassIDs(nil)

	assert.Error(t, err)
}

func TestParseClassIDsRejectsEmptyString(t *testing.T) {
	_, err := ParseClassIDs("   ")

	assert.Error(t, err)
}

func TestParseClassIDsRejectsNonIntegerString(t *testing.T) {
	_, err := ParseClassIDs("1,abc")

	assert.Error(t, err)
}

func TestParseClassIDsRejectsUnsupportedType(t *testing.T) {
	_, err := ParseClassIDs(3.14)

	assert.Error(t, err)
}

func TestTimetableCoreServicePreSolveRejectsMissingSchoolScope(t *testing.T) {
	svc := NewTimetableCoreService(nil, nil, nil)

	_, err := svc.PreSolve(context.Background(), 0, dto.PreSolveRequest{Shift: "morning", ClassIDs: []int{1}})

	assert.Error(t, err)
}

func TestTimetableCoreServicePreSolveRejectsInvalidPayload(t *testing.T) {
	svc := NewTimetableCoreService(nil, nil, nil)

	_, err := svc.PreSolve(context.Background(), 1, dto.PreSolveRequest{})

	assert.Error(t, err)
}

func TestTimetableCoreServiceRunMockRejectsEmptyClassIDs(t *testing.T) {
	svc := NewTimetableCoreService(nil, nil, nil)

	_, err := svc.RunMock(context.Background(), 1, "trace", dto.RunMockRequest{Shift: "morning", ClassIDs: ""})

	assert.Error(t, err)
}

func TestTimetableCoreServiceRunMockRejectsMissingShift(t *testing.T) {
	svc := NewTimetableCoreService(nil, nil, nil)

	_, err := svc.RunMock(context.Background(), 1, "trace", dto.RunMockRequest{ClassIDs: []any{float64(1)}})

	assert.Error(t, err)
}

func TestTimetableCoreServiceRunMockRejectsMissingSchoolScope(t *testing.T) {
	svc := NewTimetableCoreService(nil, nil, nil)

	_, err := svc.RunMock(context.Background(), 0, "trace", dto.RunMockRequest{Shift: "morning", ClassIDs: []any{float64(1)}})

	assert.Error(t, err)
}
