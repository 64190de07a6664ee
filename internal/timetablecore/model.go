// Package timetablecore builds weekly timetables from relational scheduling
// demand. It has three stages: Payload Builder turns gateway rows into a
// self-contained ProblemInstance, the Pre-Solve Validator reports structural
// issues without blocking, and the Greedy Solver assigns every Lesson to a
// (day, period) slot.
package timetablecore

import (
	"encoding/json"
	"sort"
)

// Period is one addressable teaching slot within a day.
type Period struct {
	Ordem int    `json:"ordem"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// TimeGrid maps a weekday (1..5) to its ordered periods for a (school, shift).
type TimeGrid map[int][]Period

// PeriodsPerDay returns the highest ordem seen across the grid, clamped to
// [1,10], defaulting to 6 when the grid carries no periods.
func (g TimeGrid) PeriodsPerDay() int {
	max := 0
	for _, periods := range g {
		for _, p := range periods {
			if p.Ordem > max {
				max = p.Ordem
			}
		}
	}
	if max == 0 {
		return 6
	}
	if max > 10 {
		return 10
	}
	if max < 1 {
		return 1
	}
	return max
}

// Days returns the grid's weekdays in ascending order.
func (g TimeGrid) Days() []int {
	days := make([]int, 0, len(g))
	for d := range g {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// PeriodOrdems returns the sorted period ordems configured for day, or an
// empty slice when the day carries no periods (or isn't in the grid at all).
func (g TimeGrid) PeriodOrdems(day int) []int {
	periods := g[day]
	ordems := make([]int, 0, len(periods))
	for _, p := range periods {
		ordems = append(ordems, p.Ordem)
	}
	sort.Ints(ordems)
	return ordems
}

// Class is a fixed group of students moving through the weekly schedule.
type Class struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Stage  string `json:"stage" db:"stage"`
	Series string `json:"series" db:"series"`
	Shift  string `json:"shift" db:"shift"`
}

// Subject is a teachable discipline.
type Subject struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Teacher instructs one or more class/subject pairs.
type Teacher struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Demand is the weekly lesson count a class owes to a subject.
type Demand struct {
	ClassID       string `json:"classId" db:"class_id"`
	SubjectID     string `json:"subjectId" db:"subject_id"`
	WeeklyLessons int    `json:"weeklyLessons" db:"weekly_lessons"`
}

// Assignment binds a teacher to a (class, subject) pair.
type Assignment struct {
	TeacherID string `json:"teacherId" db:"teacher_id"`
	ClassID   string `json:"classId" db:"class_id"`
	SubjectID string `json:"subjectId" db:"subject_id"`
}

// Lock is a pre-pinned cell the solver must honor without moving.
type Lock struct {
	ClassID     string  `json:"classId" db:"class_id"`
	Day         int     `json:"day" db:"day"`
	PeriodOrdem int     `json:"periodOrdem" db:"period_ordem"`
	SubjectID   string  `json:"subjectId" db:"subject_id"`
	TeacherID   *string `json:"teacherId,omitempty" db:"teacher_id"`
}

// RC01Rule bounds consecutive same-subject placements in a class on a day.
type RC01Rule struct {
	Mode           string `json:"mode"`
	MaxConsecutive int    `json:"maxConsecutive"`
}

// RC02Rule bounds same-subject placements in a class on a day.
type RC02Rule struct {
	Mode          string         `json:"mode"`
	DefaultPerDay int            `json:"defaultPerDay"`
	PerSubject    map[string]int `json:"perSubject"`
	StrictCapMock bool           `json:"strictCapMock"`
}

// MaxFor returns the effective per-day cap for subject, clamped to [1,6].
func (r RC02Rule) MaxFor(subjectID string) int {
	max := r.DefaultPerDay
	if v, ok := r.PerSubject[subjectID]; ok {
		max = v
	}
	if max < 1 {
		return 1
	}
	if max > 6 {
		return 6
	}
	return max
}

// PedagogicalConfig carries the per-(school,shift,year,level) rule set.
type PedagogicalConfig struct {
	Level string   `json:"level"`
	RC01  RC01Rule `json:"rc01"`
	RC02  RC02Rule `json:"rc02"`
}

// DefaultPedagogicalConfig is returned whenever no row can be resolved.
func DefaultPedagogicalConfig(level string) PedagogicalConfig {
	return PedagogicalConfig{
		Level: level,
		RC01:  RC01Rule{Mode: "soft", MaxConsecutive: 2},
		RC02:  RC02Rule{Mode: "soft", DefaultPerDay: 2, PerSubject: map[string]int{}, StrictCapMock: false},
	}
}

// AvailabilitySet is the set of period ordem values a teacher is free on a
// single day.
type AvailabilitySet map[int]bool

// AvailabilityIndex maps teacherId -> day -> AvailabilitySet. A missing
// teacher entry means the teacher is universally available.
type AvailabilityIndex map[string]map[int]AvailabilitySet

// HasRecord reports whether any availability row exists for the teacher.
func (a AvailabilityIndex) HasRecord(teacherID string) bool {
	_, ok := a[teacherID]
	return ok
}

// IsFree reports whether teacherID can teach on (day, period). A teacher
// with no availability record at all is treated as always free.
func (a AvailabilityIndex) IsFree(teacherID string, day, period int) bool {
	byDay, ok := a[teacherID]
	if !ok {
		return true
	}
	set, ok := byDay[day]
	if !ok {
		return true
	}
	return set[period]
}

// ProblemInstance is the immutable bundle the scheduler operates on.
type ProblemInstance struct {
	SchoolID        string                     `json:"schoolId"`
	Shift           string                     `json:"shift"`
	YearRef         *int                       `json:"yearRef,omitempty"`
	Level           string                     `json:"level,omitempty"`
	PeriodsPerDay   int                        `json:"periodsPerDay"`
	TimeGrid        TimeGrid                   `json:"timeGrid"`
	Classes         []Class                    `json:"classes"`
	Subjects        []Subject                  `json:"subjects"`
	Teachers        []Teacher                  `json:"teachers"`
	Demand          []Demand                   `json:"demand"`
	Assignments     []Assignment               `json:"assignments"`
	Availability    AvailabilityIndex          `json:"-"`
	Preferences     map[string]json.RawMessage `json:"-"`
	Locks           []Lock                     `json:"locks"`
	Config          PedagogicalConfig          `json:"config"`
	ConfigDefaulted bool                       `json:"configDefaulted"`
}

// Lesson is one unit of weekly work to place into a slot.
type Lesson struct {
	ClassID       string
	SubjectID     string
	TeacherID     string
	WeeklyLessons int
	SequenceIndex int
}

// ClassCell is an occupied slot in a ClassGrid, or nil when empty.
type ClassCell struct {
	SubjectID string `json:"subjectId"`
	TeacherID string `json:"teacherId"`
}

// TeacherCell is an occupied slot in a TeacherGrid, or nil when empty.
type TeacherCell struct {
	ClassID   string `json:"classId"`
	SubjectID string `json:"subjectId"`
}

// ClassGrid is a dense day x period matrix for one class.
type ClassGrid map[int]map[int]*ClassCell

// TeacherGrid is a dense day x period matrix for one teacher.
type TeacherGrid map[int]map[int]*TeacherCell

// newDenseClassGrid allocates one key per period actually configured in
// timeGrid for each of days, up front — never a synthetic period range.
func newDenseClassGrid(days []int, timeGrid TimeGrid) ClassGrid {
	grid := make(ClassGrid, len(days))
	for _, d := range days {
		ordems := timeGrid.PeriodOrdems(d)
		row := make(map[int]*ClassCell, len(ordems))
		for _, p := range ordems {
			row[p] = nil
		}
		grid[d] = row
	}
	return grid
}

func newDenseTeacherGrid(days []int, timeGrid TimeGrid) TeacherGrid {
	grid := make(TeacherGrid, len(days))
	for _, d := range days {
		ordems := timeGrid.PeriodOrdems(d)
		row := make(map[int]*TeacherCell, len(ordems))
		for _, p := range ordems {
			row[p] = nil
		}
		grid[d] = row
	}
	return grid
}

// UnplacedLesson describes a lesson the solver could not place.
type UnplacedLesson struct {
	ClassID   string `json:"classId"`
	SubjectID string `json:"subjectId"`
	TeacherID string `json:"teacherId"`
	Reason    string `json:"reason"`
}

const (
	ReasonNoFreeSlotInClass  = "NO_FREE_SLOT_IN_CLASS"
	ReasonTeacherFullyBusy   = "TEACHER_FULLY_BUSY"
	ReasonTeacherUnavailable = "TEACHER_UNAVAILABLE"
	ReasonOther              = "OTHER"
)

// Diagnostic aggregates unplaced-lesson reasons and coverage.
type Diagnostic struct {
	Unplaced     []UnplacedLesson `json:"unplaced"`
	Counters     map[string]int  `json:"counters"`
	CoveragePct  int             `json:"coveragePct"`
	PlacedCount  int             `json:"placedCount"`
	DemandCount  int             `json:"demandCount"`
}

// RC02Metrics mirrors the RC-02 rule values surfaced in a Schedule's metrics.
type RC02Metrics struct {
	Mode             string `json:"modo"`
	MaxPorDiaPadrao  int    `json:"max_por_dia_padrao"`
	BloqueioHard     bool   `json:"bloqueio_hard"`
	StrictCapMock    bool   `json:"strict_cap_mock"`
}

// Metrics summarizes a solved Schedule.
type Metrics struct {
	AulasAlocadas        int         `json:"aulas_alocadas"`
	AulasDemanda         int         `json:"aulas_demanda"`
	Cobertura            int         `json:"cobertura"`
	RC01MaxConsecutivas  int         `json:"rc01_max_consecutivas"`
	RC02                 RC02Metrics `json:"rc02"`
	PeriodosPorDia       int         `json:"periodos_por_dia"`
}

// Schedule is the output of the Greedy Solver.
type Schedule struct {
	PerClassGrid   map[string]ClassGrid
	PerTeacherGrid map[string]TeacherGrid
	Metrics        Metrics
	Diagnostic     Diagnostic
	LockConflicts  []string
}
