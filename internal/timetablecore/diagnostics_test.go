package timetablecore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func gridFull(days []int, periodsPerDay int) (ClassGrid, TeacherGrid) {
	classGrid := ClassGrid{}
	teacherGrid := TeacherGrid{}
	for _, day := range days {
		classRow := map[int]*ClassCell{}
		teacherRow := map[int]*TeacherCell{}
		for p := 1; p <= periodsPerDay; p++ {
			classRow[p] = &ClassCell{SubjectID: "x", TeacherID: "t"}
			teacherRow[p] = &TeacherCell{ClassID: "c", SubjectID: "x"}
		}
		classGrid[day] = classRow
		teacherGrid[day] = teacherRow
	}
	return classGrid, teacherGrid
}

func uniformTimeGrid(days []int, periodsPerDay int) TimeGrid {
	grid := TimeGrid{}
	for _, day := range days {
		periods := make([]Period, 0, periodsPerDay)
		for p := 1; p <= periodsPerDay; p++ {
			periods = append(periods, Period{Ordem: p})
		}
		grid[day] = periods
	}
	return grid
}

func TestClassifyUnplacedNoFreeSlotInClass(t *testing.T) {
	days := []int{1, 2}
	classGrid, teacherGrid := gridFull(days, 2)
	instance := &ProblemInstance{TimeGrid: uniformTimeGrid(days, 2), Availability: AvailabilityIndex{}}

	u := classifyUnplaced(instance, classGrid, teacherGrid, days, Lesson{ClassID: "c", SubjectID: "y", TeacherID: "t2"})

	assert.Equal(t, ReasonNoFreeSlotInClass, u.Reason)
}

func TestClassifyUnplacedTeacherFullyBusy(t *testing.T) {
	days := []int{1}
	classGrid := ClassGrid{1: {1: nil}}
	teacherGrid := TeacherGrid{1: {1: &TeacherCell{ClassID: "other", SubjectID: "x"}}}
	instance := &ProblemInstance{TimeGrid: uniformTimeGrid(days, 1), Availability: AvailabilityIndex{}}

	u := classifyUnplaced(instance, classGrid, teacherGrid, days, Lesson{ClassID: "c", SubjectID: "y", TeacherID: "t"})

	assert.Equal(t, ReasonTeacherFullyBusy, u.Reason)
}

func TestClassifyUnplacedTeacherUnavailable(t *testing.T) {
	days := []int{1}
	classGrid := ClassGrid{1: {1: nil}}
	teacherGrid := TeacherGrid{1: {1: nil}}
	instance := &ProblemInstance{
		TimeGrid:     uniformTimeGrid(days, 1),
		Availability: AvailabilityIndex{"t": {1: AvailabilitySet{1: false}}},
	}

	u := classifyUnplaced(instance, classGrid, teacherGrid, days, Lesson{ClassID: "c", SubjectID: "y", TeacherID: "t"})

	assert.Equal(t, ReasonTeacherUnavailable, u.Reason)
}

func TestBuildDiagnosticComputesCoverageAndCounters(t *testing.T) {
	unplaced := []UnplacedLesson{
		{ClassID: "b", SubjectID: "math", TeacherID: "t1", Reason: ReasonTeacherFullyBusy},
		{ClassID: "a", SubjectID: "math", TeacherID: "t2", Reason: ReasonNoFreeSlotInClass},
	}

	diag := buildDiagnostic(unplaced, 3, 5)

	assert.Equal(t, 60, diag.CoveragePct)
	assert.Equal(t, 1, diag.Counters[ReasonTeacherFullyBusy])
	assert.Equal(t, 1, diag.Counters[ReasonNoFreeSlotInClass])
	assert.Equal(t, 0, diag.Counters[ReasonTeacherUnavailable])
	ordered := diag.Unplaced
	assert.Equal(t, "a", ordered[0].ClassID)
	assert.Equal(t, "b", ordered[1].ClassID)
}

func TestBuildDiagnosticFullCoverageWhenNoDemand(t *testing.T) {
	diag := buildDiagnostic(nil, 0, 0)

	assert.Equal(t, 100, diag.CoveragePct)
	assert.Empty(t, diag.Unplaced)
}

func TestBuildMetricsReflectsConfigAndCoverage(t *testing.T) {
	instance := &ProblemInstance{
		Config: PedagogicalConfig{
			RC01: RC01Rule{MaxConsecutive: 2},
			RC02: RC02Rule{Mode: "hard", DefaultPerDay: 2, StrictCapMock: true},
		},
	}

	metrics := buildMetrics(instance, 4, 8, 6)

	assert.Equal(t, 4, metrics.AulasAlocadas)
	assert.Equal(t, 8, metrics.AulasDemanda)
	assert.Equal(t, 50, metrics.Cobertura)
	assert.Equal(t, 2, metrics.RC01MaxConsecutivas)
	assert.Equal(t, "hard", metrics.RC02.Mode)
	assert.True(t, metrics.RC02.BloqueioHard)
	assert.True(t, metrics.RC02.StrictCapMock)
	assert.Equal(t, 6, metrics.PeriodosPorDia)
}
