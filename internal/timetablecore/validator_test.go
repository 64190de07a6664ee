package timetablecore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func instanceWithGrid() *ProblemInstance {
	return &ProblemInstance{
		TimeGrid: TimeGrid{1: {{Ordem: 1, Start: "07:00", End: "07:50"}, {Ordem: 2, Start: "07:50", End: "08:40"}}},
		Classes:  []Class{{ID: "class-a"}},
		Teachers: []Teacher{{ID: "teacher-1"}},
	}
}

func hasIssue(issues []ValidationIssue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func TestValidateEmptyTimeGridIsError(t *testing.T) {
	instance := instanceWithGrid()
	instance.TimeGrid = TimeGrid{}

	report := Validate(instance)

	assert.True(t, hasIssue(report.Errors, IssueEmptyTimeGrid))
}

func TestValidateOverlappingPeriodsIsError(t *testing.T) {
	instance := instanceWithGrid()
	instance.TimeGrid[1] = []Period{
		{Ordem: 1, Start: "07:00", End: "07:50"},
		{Ordem: 2, Start: "07:40", End: "08:30"},
	}

	report := Validate(instance)

	assert.True(t, hasIssue(report.Errors, IssueOverlappingPeriods))
}

func TestValidateAssignmentWithoutDemandIsError(t *testing.T) {
	instance := instanceWithGrid()
	instance.Assignments = []Assignment{{TeacherID: "teacher-1", ClassID: "class-a", SubjectID: "math"}}

	report := Validate(instance)

	assert.True(t, hasIssue(report.Errors, IssueAssignmentNoDemand))
}

func TestValidateNoTeacherWarnsWhenDemandUnassigned(t *testing.T) {
	instance := instanceWithGrid()
	instance.Demand = []Demand{{ClassID: "class-a", SubjectID: "math", WeeklyLessons: 3}}

	report := Validate(instance)

	assert.True(t, hasIssue(report.Warnings, IssueNoTeacher))
}

func TestValidatePartialDemandWarnsWhenUnderAssigned(t *testing.T) {
	instance := instanceWithGrid()
	instance.Demand = []Demand{{ClassID: "class-a", SubjectID: "math", WeeklyLessons: 3}}
	instance.Assignments = []Assignment{
		{TeacherID: "teacher-1", ClassID: "class-a", SubjectID: "math"},
	}

	report := Validate(instance)

	assert.True(t, hasIssue(report.Warnings, IssuePartialDemand))
}

func TestValidateNoAvailabilityDataWarnsPerTeacher(t *testing.T) {
	instance := instanceWithGrid()

	report := Validate(instance)

	assert.True(t, hasIssue(report.Warnings, IssueNoAvailabilityData))
}

func TestValidateAvailabilityOutsideGridIsError(t *testing.T) {
	instance := instanceWithGrid()
	instance.Availability = AvailabilityIndex{
		"teacher-1": {1: AvailabilitySet{99: true}},
	}

	report := Validate(instance)

	assert.True(t, hasIssue(report.Errors, IssueAvailabilityOutGrid))
}

func TestValidateLockOutsideGridIsError(t *testing.T) {
	instance := instanceWithGrid()
	instance.Locks = []Lock{{ClassID: "class-a", Day: 3, PeriodOrdem: 1, SubjectID: "math"}}

	report := Validate(instance)

	assert.True(t, hasIssue(report.Errors, IssueLockOutsideGrid))
}

func TestValidateDuplicateTeacherLockIsError(t *testing.T) {
	instance := instanceWithGrid()
	instance.Classes = append(instance.Classes, Class{ID: "class-b"})
	teacherID := "teacher-1"
	instance.Locks = []Lock{
		{ClassID: "class-a", Day: 1, PeriodOrdem: 1, SubjectID: "math", TeacherID: &teacherID},
		{ClassID: "class-b", Day: 1, PeriodOrdem: 1, SubjectID: "science", TeacherID: &teacherID},
	}

	report := Validate(instance)

	assert.True(t, hasIssue(report.Errors, IssueLockDuplicateTeacher))
}

func TestValidateNeverBlocksOnErrors(t *testing.T) {
	instance := &ProblemInstance{}

	report := Validate(instance)

	assert.NotEmpty(t, report.Errors)
}
