package timetablecore

import "sort"

// classifyUnplaced re-scans the grids to explain why lesson could not be
// placed, per spec.md's Diagnostic Reporter rules. It only considers
// (day, period) pairs the instance's TimeGrid actually defines.
func classifyUnplaced(instance *ProblemInstance, classGrid ClassGrid, teacherGrid TeacherGrid, days []int, lesson Lesson) UnplacedLesson {
	reason := ReasonOther

	classHasFree := false
	teacherFreeInClassFree := false
	availabilityIntersects := false

	for _, day := range days {
		classRow := classGrid[day]
		teacherRow := teacherGrid[day]
		for _, period := range instance.TimeGrid.PeriodOrdems(day) {
			if classRow[period] != nil {
				continue
			}
			classHasFree = true
			if teacherRow[period] != nil {
				continue
			}
			teacherFreeInClassFree = true
			if instance.Availability.IsFree(lesson.TeacherID, day, period) {
				availabilityIntersects = true
			}
		}
	}

	switch {
	case !classHasFree:
		reason = ReasonNoFreeSlotInClass
	case !teacherFreeInClassFree:
		reason = ReasonTeacherFullyBusy
	case !availabilityIntersects:
		reason = ReasonTeacherUnavailable
	default:
		reason = ReasonOther
	}

	return UnplacedLesson{
		ClassID:   lesson.ClassID,
		SubjectID: lesson.SubjectID,
		TeacherID: lesson.TeacherID,
		Reason:    reason,
	}
}

// buildDiagnostic aggregates unplaced-lesson reasons and coverage.
func buildDiagnostic(unplaced []UnplacedLesson, placed, demand int) Diagnostic {
	sort.Slice(unplaced, func(i, j int) bool {
		a, b := unplaced[i], unplaced[j]
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.TeacherID < b.TeacherID
	})

	counters := map[string]int{
		ReasonNoFreeSlotInClass:  0,
		ReasonTeacherFullyBusy:   0,
		ReasonTeacherUnavailable: 0,
		ReasonOther:              0,
	}
	for _, u := range unplaced {
		counters[u.Reason]++
	}

	coverage := 100
	if demand > 0 {
		coverage = int((float64(placed) / float64(demand) * 100) + 0.5)
	}

	return Diagnostic{
		Unplaced:    unplaced,
		Counters:    counters,
		CoveragePct: coverage,
		PlacedCount: placed,
		DemandCount: demand,
	}
}

// buildMetrics summarizes the solved schedule for API consumers.
func buildMetrics(instance *ProblemInstance, placed, demand, periodsPerDay int) Metrics {
	coverage := 100
	if demand > 0 {
		coverage = int((float64(placed) / float64(demand) * 100) + 0.5)
	}

	return Metrics{
		AulasAlocadas:       placed,
		AulasDemanda:        demand,
		Cobertura:           coverage,
		RC01MaxConsecutivas: instance.Config.RC01.MaxConsecutive,
		RC02: RC02Metrics{
			Mode:            instance.Config.RC02.Mode,
			MaxPorDiaPadrao: instance.Config.RC02.DefaultPerDay,
			BloqueioHard:    instance.Config.RC02.Mode == "hard",
			StrictCapMock:   instance.Config.RC02.StrictCapMock,
		},
		PeriodosPorDia: periodsPerDay,
	}
}
