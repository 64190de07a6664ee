package timetablecore

import (
	"fmt"
	"sort"
)

// ValidationIssue is a single finding surfaced by the Pre-Solve Validator.
// Issues never block PreSolve or RunMock — they are informational.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationReport is the Pre-Solve Validator's full output.
type ValidationReport struct {
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
	Stats    ValidationStats   `json:"stats"`
}

// ValidationStats are simple structural counters over the instance.
type ValidationStats struct {
	ClassCount      int `json:"classCount"`
	DemandCount     int `json:"demandCount"`
	AssignmentCount int `json:"assignmentCount"`
	TeacherCount    int `json:"teacherCount"`
	LockCount       int `json:"lockCount"`
}

const (
	IssueEmptyTimeGrid        = "EMPTY_TIME_GRID"
	IssueOverlappingPeriods   = "OVERLAPPING_PERIODS"
	IssueAssignmentNoDemand   = "ASSIGNMENT_WITHOUT_DEMAND"
	IssueDemandOverAssigned   = "DEMAND_OVER_ASSIGNED"
	IssueNoTeacher            = "NO_TEACHER"
	IssuePartialDemand        = "PARTIAL_DEMAND"
	IssueAvailabilityOutGrid  = "AVAILABILITY_OUTSIDE_GRID"
	IssueNoAvailabilityData   = "NO_AVAILABILITY_DATA"
	IssueLockOutsideGrid      = "LOCK_OUTSIDE_GRID"
	IssueLockDuplicateTeacher = "LOCK_DUPLICATE_TEACHER_SLOT"
	IssueLockOutsideAvailability = "LOCK_OUTSIDE_TEACHER_AVAILABILITY"
)

// Validate runs the four structural checks spec.md assigns the Pre-Solve
// Validator: TimeGrid integrity, Demand/Assignment coverage, Availability
// data presence, and Lock consistency. It never returns an error: every
// finding is either an Error or a Warning entry in the report, and the
// solver always runs regardless of the report's content.
func Validate(instance *ProblemInstance) ValidationReport {
	report := ValidationReport{
		Errors:   []ValidationIssue{},
		Warnings: []ValidationIssue{},
	}

	validateTimeGrid(instance, &report)
	validateDemandVsAssignments(instance, &report)
	validateAvailabilities(instance, &report)
	validateLocks(instance, &report)

	report.Stats = ValidationStats{
		ClassCount:      len(instance.Classes),
		DemandCount:     len(instance.Demand),
		AssignmentCount: len(instance.Assignments),
		TeacherCount:    len(instance.Teachers),
		LockCount:       len(instance.Locks),
	}
	return report
}

func validateTimeGrid(instance *ProblemInstance, report *ValidationReport) {
	if len(instance.TimeGrid) == 0 {
		report.Errors = append(report.Errors, ValidationIssue{
			Code:    IssueEmptyTimeGrid,
			Message: "no time grid periods configured for this school and shift",
		})
		return
	}

	type triple struct {
		day, a, b int
	}
	var overlaps []triple
	for _, day := range instance.TimeGrid.Days() {
		periods := append([]Period(nil), instance.TimeGrid[day]...)
		sort.Slice(periods, func(i, j int) bool { return periods[i].Start < periods[j].Start })
		for i := 1; i < len(periods); i++ {
			if periods[i].Start < periods[i-1].End {
				overlaps = append(overlaps, triple{day, periods[i-1].Ordem, periods[i].Ordem})
			}
		}
	}
	for i, o := range overlaps {
		if i >= 3 {
			break
		}
		report.Errors = append(report.Errors, ValidationIssue{
			Code:    IssueOverlappingPeriods,
			Message: fmt.Sprintf("day %d periods %d and %d overlap", o.day, o.a, o.b),
		})
	}
}

func validateDemandVsAssignments(instance *ProblemInstance, report *ValidationReport) {
	demandByPair := make(map[string]int, len(instance.Demand))
	for _, d := range instance.Demand {
		demandByPair[d.ClassID+"|"+d.SubjectID] = d.WeeklyLessons
	}

	assignedByPair := make(map[string]int, len(instance.Assignments))
	assignments := append([]Assignment(nil), instance.Assignments...)
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].ClassID != assignments[j].ClassID {
			return assignments[i].ClassID < assignments[j].ClassID
		}
		return assignments[i].SubjectID < assignments[j].SubjectID
	})
	for _, a := range assignments {
		key := a.ClassID + "|" + a.SubjectID
		if _, ok := demandByPair[key]; !ok {
			report.Errors = append(report.Errors, ValidationIssue{
				Code:    IssueAssignmentNoDemand,
				Message: fmt.Sprintf("assignment for class %s subject %s has no matching demand", a.ClassID, a.SubjectID),
			})
			continue
		}
		assignedByPair[key]++
	}

	pairs := make([]string, 0, len(demandByPair))
	for key := range demandByPair {
		pairs = append(pairs, key)
	}
	sort.Strings(pairs)
	for _, key := range pairs {
		demand := demandByPair[key]
		assigned := assignedByPair[key]
		switch {
		case assigned > demand:
			report.Errors = append(report.Errors, ValidationIssue{
				Code:    IssueDemandOverAssigned,
				Message: fmt.Sprintf("%s has %d assignments exceeding demand of %d", key, assigned, demand),
			})
		case assigned == 0:
			report.Warnings = append(report.Warnings, ValidationIssue{
				Code:    IssueNoTeacher,
				Message: fmt.Sprintf("%s has no teacher assigned", key),
			})
		case assigned < demand:
			report.Warnings = append(report.Warnings, ValidationIssue{
				Code:    IssuePartialDemand,
				Message: fmt.Sprintf("%s has %d of %d weekly lessons assigned", key, assigned, demand),
			})
		}
	}
}

func validateAvailabilities(instance *ProblemInstance, report *ValidationReport) {
	teacherIDs := make([]string, 0, len(instance.Availability))
	for id := range instance.Availability {
		teacherIDs = append(teacherIDs, id)
	}
	sort.Strings(teacherIDs)

	for _, teacherID := range teacherIDs {
		byDay := instance.Availability[teacherID]
		days := make([]int, 0, len(byDay))
		for d := range byDay {
			days = append(days, d)
		}
		sort.Ints(days)
		for _, day := range days {
			periods, ok := instance.TimeGrid[day]
			validOrdems := map[int]bool{}
			for _, p := range periods {
				validOrdems[p.Ordem] = true
			}
			set := byDay[day]
			ordems := make([]int, 0, len(set))
			for ordem := range set {
				ordems = append(ordems, ordem)
			}
			sort.Ints(ordems)
			for _, ordem := range ordems {
				if !ok || !validOrdems[ordem] {
					report.Errors = append(report.Errors, ValidationIssue{
						Code: IssueAvailabilityOutGrid,
						Message: fmt.Sprintf(
							"teacher %s availability references day %d period %d outside the time grid",
							teacherID, day, ordem),
					})
				}
			}
		}
	}

	for _, t := range instance.Teachers {
		if !instance.Availability.HasRecord(t.ID) {
			report.Warnings = append(report.Warnings, ValidationIssue{
				Code:    IssueNoAvailabilityData,
				Message: fmt.Sprintf("teacher %s has no availability records; treated as fully available", t.ID),
			})
		}
	}
}

func validateLocks(instance *ProblemInstance, report *ValidationReport) {
	type slotKey struct {
		day, period int
	}
	teacherSlots := map[slotKey]map[string]bool{}

	locks := append([]Lock(nil), instance.Locks...)
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
		periods, hasDay := instance.TimeGrid[lock.Day]
		found := false
		for _, p := range periods {
			if p.Ordem == lock.PeriodOrdem {
				found = true
				break
			}
		}
		if !hasDay || !found {
			report.Errors = append(report.Errors, ValidationIssue{
				Code: IssueLockOutsideGrid,
				Message: fmt.Sprintf(
					"lock for class %s references day %d period %d outside the time grid",
					lock.ClassID, lock.Day, lock.PeriodOrdem),
			})
			continue
		}

		if lock.TeacherID == nil || *lock.TeacherID == "" {
			continue
		}
		teacherID := *lock.TeacherID
		key := slotKey{lock.Day, lock.PeriodOrdem}
		if teacherSlots[key] == nil {
			teacherSlots[key] = map[string]bool{}
		}
		if teacherSlots[key][teacherID] {
			report.Errors = append(report.Errors, ValidationIssue{
				Code: IssueLockDuplicateTeacher,
				Message: fmt.Sprintf(
					"teacher %s locked twice on day %d period %d",
					teacherID, lock.Day, lock.PeriodOrdem),
			})
		}
		teacherSlots[key][teacherID] = true

		if instance.Availability.HasRecord(teacherID) && !instance.Availability.IsFree(teacherID, lock.Day, lock.PeriodOrdem) {
			report.Errors = append(report.Errors, ValidationIssue{
				Code: IssueLockOutsideAvailability,
				Message: fmt.Sprintf(
					"lock for teacher %s on day %d period %d falls outside their availability",
					teacherID, lock.Day, lock.PeriodOrdem),
			})
		}
	}
}
