package timetablecore

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// BuildRequest selects the scope the Payload Builder assembles a
// ProblemInstance for.
type BuildRequest struct {
	SchoolID int
	Shift    string
	YearRef  *int
	Level    string
	ClassIDs []int
}

// PayloadBuilder consolidates Gateway reads into a self-contained
// ProblemInstance, ready for validation and solving.
type PayloadBuilder struct {
	gateway Gateway
	pedagogy *PedagogyLoader
	logger  *zap.Logger
}

// NewPayloadBuilder constructs a builder bound to gateway.
func NewPayloadBuilder(gateway Gateway, pedagogy *PedagogyLoader, logger *zap.Logger) *PayloadBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayloadBuilder{gateway: gateway, pedagogy: pedagogy, logger: logger}
}

// Build assembles a ProblemInstance for req.
func (b *PayloadBuilder) Build(ctx context.Context, req BuildRequest) (*ProblemInstance, error) {
	grid, err := b.gateway.FetchTimeGrid(ctx, req.SchoolID, req.Shift)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	classes, err := b.gateway.FetchClasses(ctx, req.SchoolID, req.Shift, req.ClassIDs)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })

	resolvedClassIDs := req.ClassIDs
	if len(resolvedClassIDs) == 0 {
		resolvedClassIDs = intIDsFromClasses(classes)
	}

	demand, err := b.gateway.FetchDemand(ctx, req.SchoolID, req.Shift, resolvedClassIDs)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	sort.Slice(demand, func(i, j int) bool {
		if demand[i].ClassID != demand[j].ClassID {
			return demand[i].ClassID < demand[j].ClassID
		}
		return demand[i].SubjectID < demand[j].SubjectID
	})

	assignments, err := b.gateway.FetchAssignments(ctx, req.SchoolID, resolvedClassIDs)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].ClassID != assignments[j].ClassID {
			return assignments[i].ClassID < assignments[j].ClassID
		}
		return assignments[i].SubjectID < assignments[j].SubjectID
	})

	teacherIDs := teacherIDsFromAssignments(assignments)

	locks, err := b.gateway.FetchLocks(ctx, req.SchoolID, req.Shift, resolvedClassIDs)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	availabilityRows, err := b.gateway.FetchAvailabilities(ctx, req.SchoolID, req.Shift, teacherIDs)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	availability := indexAvailability(availabilityRows)

	preferences, err := b.gateway.FetchPreferences(ctx, req.SchoolID, req.Shift, teacherIDs)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	config, defaulted := b.pedagogy.Load(ctx, req.SchoolID, req.Shift, req.YearRef, req.Level)

	instance := &ProblemInstance{
		SchoolID:        fmt.Sprintf("%d", req.SchoolID),
		Shift:           normalizeShift(req.Shift),
		YearRef:         req.YearRef,
		Level:           req.Level,
		PeriodsPerDay:   grid.PeriodsPerDay(),
		TimeGrid:        grid,
		Classes:         classes,
		Subjects:        subjectsFromDemand(demand),
		Teachers:        teachersFromAssignments(assignments),
		Demand:          demand,
		Assignments:     assignments,
		Availability:    availability,
		Preferences:     preferences,
		Locks:           locks,
		Config:          config,
		ConfigDefaulted: defaulted,
	}

	b.logger.Debug("payload built",
		zap.Int("schoolId", req.SchoolID),
		zap.String("shift", instance.Shift),
		zap.Int("classes", len(instance.Classes)),
		zap.Int("demand", len(instance.Demand)),
		zap.Bool("configDefaulted", defaulted),
	)

	return instance, nil
}

func intIDsFromClasses(classes []Class) []int {
	ids := make([]int, 0, len(classes))
	for _, c := range classes {
		var id int
		if _, err := fmt.Sscanf(c.ID, "%d", &id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func teacherIDsFromAssignments(assignments []Assignment) []string {
	seen := map[string]bool{}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if !seen[a.TeacherID] {
			seen[a.TeacherID] = true
			ids = append(ids, a.TeacherID)
		}
	}
	sort.Strings(ids)
	return ids
}

func subjectsFromDemand(demand []Demand) []Subject {
	seen := map[string]bool{}
	subjects := make([]Subject, 0, len(demand))
	for _, d := range demand {
		if !seen[d.SubjectID] {
			seen[d.SubjectID] = true
			subjects = append(subjects, Subject{ID: d.SubjectID})
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects
}

func teachersFromAssignments(assignments []Assignment) []Teacher {
	seen := map[string]bool{}
	teachers := make([]Teacher, 0, len(assignments))
	for _, a := range assignments {
		if !seen[a.TeacherID] {
			seen[a.TeacherID] = true
			teachers = append(teachers, Teacher{ID: a.TeacherID})
		}
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	return teachers
}

func indexAvailability(rows []AvailabilityRow) AvailabilityIndex {
	index := AvailabilityIndex{}
	for _, r := range rows {
		byDay, ok := index[r.TeacherID]
		if !ok {
			byDay = map[int]AvailabilitySet{}
			index[r.TeacherID] = byDay
		}
		set, ok := byDay[r.Day]
		if !ok {
			set = AvailabilitySet{}
			byDay[r.Day] = set
		}
		set[r.PeriodOrdem] = r.Status == "" || r.Status == "free" || r.Status == "available"
	}
	return index
}
