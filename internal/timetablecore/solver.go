package timetablecore

import (
	"context"
	"fmt"
	"sort"
)

// Solve builds a Schedule for instance: locks are placed first, then every
// exploded Lesson is greedily assigned to its lowest-scoring feasible slot.
// It never returns an error; data-quality problems degrade to unplaced
// lessons reported by the Diagnostic Reporter.
func Solve(ctx context.Context, instance *ProblemInstance) *Schedule {
	days := instance.TimeGrid.Days()

	classGrids := make(map[string]ClassGrid, len(instance.Classes))
	for _, c := range instance.Classes {
		classGrids[c.ID] = newDenseClassGrid(days, instance.TimeGrid)
	}

	teacherIDs := make([]string, 0, len(instance.Teachers))
	for _, t := range instance.Teachers {
		teacherIDs = append(teacherIDs, t.ID)
	}
	sort.Strings(teacherIDs)
	teacherGrids := make(map[string]TeacherGrid, len(teacherIDs))
	for _, id := range teacherIDs {
		teacherGrids[id] = newDenseTeacherGrid(days, instance.TimeGrid)
	}

	lockConflicts := placeLocks(instance, classGrids, teacherGrids)

	lessons := explodeLessons(instance)

	unplaced := make([]UnplacedLesson, 0)
	placed := 0

	for _, lesson := range lessons {
		select {
		case <-ctx.Done():
			unplaced = append(unplaced, UnplacedLesson{
				ClassID: lesson.ClassID, SubjectID: lesson.SubjectID, TeacherID: lesson.TeacherID,
				Reason: ReasonOther,
			})
			continue
		default:
		}

		classGrid, ok := classGrids[lesson.ClassID]
		if !ok {
			classGrid = newDenseClassGrid(days, instance.TimeGrid)
			classGrids[lesson.ClassID] = classGrid
		}
		teacherGrid, ok := teacherGrids[lesson.TeacherID]
		if !ok {
			teacherGrid = newDenseTeacherGrid(days, instance.TimeGrid)
			teacherGrids[lesson.TeacherID] = teacherGrid
		}

		day, period, found := bestSlot(instance, classGrid, teacherGrid, days, lesson)
		if !found {
			unplaced = append(unplaced, classifyUnplaced(instance, classGrid, teacherGrid, days, lesson))
			continue
		}

		classGrid[day][period] = &ClassCell{SubjectID: lesson.SubjectID, TeacherID: lesson.TeacherID}
		teacherGrid[day][period] = &TeacherCell{ClassID: lesson.ClassID, SubjectID: lesson.SubjectID}
		placed++
	}

	schedule := &Schedule{
		PerClassGrid:   classGrids,
		PerTeacherGrid: teacherGrids,
		LockConflicts:  lockConflicts,
	}
	schedule.Diagnostic = buildDiagnostic(unplaced, placed, len(lessons))
	schedule.Metrics = buildMetrics(instance, placed, len(lessons), instance.PeriodsPerDay)
	return schedule
}

// placeLocks seats every lock directly, independent of the TimeGrid: a lock
// is an explicit admin override and the Pre-Solve Validator (not the solver)
// is what reports a lock that falls outside the configured grid.
func placeLocks(instance *ProblemInstance, classGrids map[string]ClassGrid, teacherGrids map[string]TeacherGrid) []string {
	conflicts := make([]string, 0)
	locks := make([]Lock, len(instance.Locks))
	copy(locks, instance.Locks)
	sort.Slice(locks, func(i, j int) bool {
		if locks[i].ClassID != locks[j].ClassID {
			return locks[i].ClassID < locks[j].ClassID
		}
		if locks[i].Day != locks[j].Day {
			return locks[i].Day < locks[j].Day
		}
		return locks[i].PeriodOrdem < locks[j].PeriodOrdem
	})

	for _, lock := range locks {
		classGrid, ok := classGrids[lock.ClassID]
		if !ok {
			classGrid = ClassGrid{}
			classGrids[lock.ClassID] = classGrid
		}
		row, ok := classGrid[lock.Day]
		if !ok {
			row = make(map[int]*ClassCell)
			classGrid[lock.Day] = row
		}
		if cell := row[lock.PeriodOrdem]; cell != nil {
			conflicts = append(conflicts, fmt.Sprintf("class %s day %d period %d already locked", lock.ClassID, lock.Day, lock.PeriodOrdem))
			continue
		}

		teacherID := ""
		if lock.TeacherID != nil {
			teacherID = *lock.TeacherID
		}
		if teacherID != "" {
			teacherGrid, ok := teacherGrids[teacherID]
			if !ok {
				teacherGrid = TeacherGrid{}
				teacherGrids[teacherID] = teacherGrid
			}
			trow, ok := teacherGrid[lock.Day]
			if !ok {
				trow = make(map[int]*TeacherCell)
				teacherGrid[lock.Day] = trow
			}
			if trow[lock.PeriodOrdem] != nil {
				conflicts = append(conflicts, fmt.Sprintf("teacher %s day %d period %d already locked", teacherID, lock.Day, lock.PeriodOrdem))
				continue
			}
			trow[lock.PeriodOrdem] = &TeacherCell{ClassID: lock.ClassID, SubjectID: lock.SubjectID}
		}

		row[lock.PeriodOrdem] = &ClassCell{SubjectID: lock.SubjectID, TeacherID: teacherID}
	}
	return conflicts
}

// explodeLessons turns Demand joined with Assignment into one Lesson per
// weekly occurrence, sorted by (-weeklyLessons, classId, subjectId,
// teacherId, sequenceIndex).
func explodeLessons(instance *ProblemInstance) []Lesson {
	teacherByPair := make(map[string]string, len(instance.Assignments))
	for _, a := range instance.Assignments {
		teacherByPair[a.ClassID+"|"+a.SubjectID] = a.TeacherID
	}

	lessons := make([]Lesson, 0)
	for _, d := range instance.Demand {
		teacherID, ok := teacherByPair[d.ClassID+"|"+d.SubjectID]
		if !ok {
			continue
		}
		for i := 0; i < d.WeeklyLessons; i++ {
			lessons = append(lessons, Lesson{
				ClassID:       d.ClassID,
				SubjectID:     d.SubjectID,
				TeacherID:     teacherID,
				WeeklyLessons: d.WeeklyLessons,
				SequenceIndex: i,
			})
		}
	}

	sort.Slice(lessons, func(i, j int) bool {
		a, b := lessons[i], lessons[j]
		if a.WeeklyLessons != b.WeeklyLessons {
			return a.WeeklyLessons > b.WeeklyLessons
		}
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.TeacherID != b.TeacherID {
			return a.TeacherID < b.TeacherID
		}
		return a.SequenceIndex < b.SequenceIndex
	})
	return lessons
}

// bestSlot scans every (day, period) the TimeGrid actually defines, in
// ascending order, and returns the feasible slot with minimum score,
// breaking ties by (day, period). A period the grid doesn't define for that
// day is never a candidate, even if the dense grids happen to be uniform.
func bestSlot(instance *ProblemInstance, classGrid ClassGrid, teacherGrid TeacherGrid, days []int, lesson Lesson) (int, int, bool) {
	bestDay, bestPeriod := 0, 0
	bestScore := 0.0
	found := false

	for _, day := range days {
		classRow := classGrid[day]
		teacherRow := teacherGrid[day]
		for _, period := range instance.TimeGrid.PeriodOrdems(day) {
			if classRow[period] != nil {
				continue
			}
			if teacherRow[period] != nil {
				continue
			}
			if !instance.Availability.IsFree(lesson.TeacherID, day, period) {
				continue
			}

			score := slotScore(instance, classRow, teacherRow, day, period, lesson)
			if !found || score < bestScore {
				bestScore = score
				bestDay = day
				bestPeriod = period
				found = true
			}
		}
	}
	return bestDay, bestPeriod, found
}

func slotScore(instance *ProblemInstance, classRow map[int]*ClassCell, teacherRow map[int]*TeacherCell, day, period int, lesson Lesson) float64 {
	score := float64(period) * 0.5

	if cell := classRow[period-1]; cell != nil {
		score -= 0.7
	}
	if cell := classRow[period+1]; cell != nil {
		score -= 0.4
	}

	consec := consecutiveRun(classRow, period, lesson.SubjectID)
	maxConsec := instance.Config.RC01.MaxConsecutive
	if maxConsec <= 0 {
		maxConsec = 2
	}
	if consec > maxConsec {
		score += 1000 + 200*float64(consec-maxConsec)
	}

	sameDayCount := countSameDaySubject(classRow, lesson.SubjectID)
	maxPerDay := instance.Config.RC02.MaxFor(lesson.SubjectID)
	if sameDayCount >= maxPerDay {
		if instance.Config.RC02.Mode == "hard" || instance.Config.RC02.StrictCapMock {
			score += 50000
		} else {
			excess := sameDayCount - maxPerDay + 1
			score += 1500 + 400*float64(excess)
		}
	}

	if teacherHasAnyCellThatDay(teacherRow) {
		score -= 0.3
	}

	score += float64(day) * 0.05

	return score
}

// consecutiveRun returns the length of the contiguous same-subject block
// that would result from placing subjectID at period, including period.
func consecutiveRun(classRow map[int]*ClassCell, period int, subjectID string) int {
	run := 1
	for p := period - 1; ; p-- {
		cell := classRow[p]
		if cell == nil || cell.SubjectID != subjectID {
			break
		}
		run++
	}
	for p := period + 1; ; p++ {
		cell := classRow[p]
		if cell == nil || cell.SubjectID != subjectID {
			break
		}
		run++
	}
	return run
}

func countSameDaySubject(classRow map[int]*ClassCell, subjectID string) int {
	count := 0
	periods := make([]int, 0, len(classRow))
	for p := range classRow {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	for _, p := range periods {
		if cell := classRow[p]; cell != nil && cell.SubjectID == subjectID {
			count++
		}
	}
	return count
}

func teacherHasAnyCellThatDay(teacherRow map[int]*TeacherCell) bool {
	periods := make([]int, 0, len(teacherRow))
	for p := range teacherRow {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	for _, p := range periods {
		if teacherRow[p] != nil {
			return true
		}
	}
	return false
}
