package timetablecore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Gateway runs the read-only queries the Payload Builder consolidates into a
// ProblemInstance. All methods normalize shift casing, reject non-positive
// ids, and return empty collections (never an error) on absence.
type Gateway interface {
	FetchTimeGrid(ctx context.Context, schoolID int, shift string) (TimeGrid, error)
	FetchClasses(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Class, error)
	FetchDemand(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Demand, error)
	FetchAssignments(ctx context.Context, schoolID int, classIDs []int) ([]Assignment, error)
	FetchAvailabilities(ctx context.Context, schoolID int, shift string, teacherIDs []string) ([]AvailabilityRow, error)
	FetchPreferences(ctx context.Context, schoolID int, shift string, teacherIDs []string) (map[string]json.RawMessage, error)
	FetchLocks(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Lock, error)
	FetchPedagogicalConfig(ctx context.Context, schoolID int, shift string, yearRef *int, level string) (*PedagogicalConfig, error)
	PedagogicalConfigStoreExists(ctx context.Context) bool
}

// AvailabilityRow is one raw availability record before indexing.
type AvailabilityRow struct {
	TeacherID   string
	Day         int
	PeriodOrdem int
	Status      string
}

// PostgresGateway implements Gateway against the relational store via sqlx.
type PostgresGateway struct {
	db *sqlx.DB

	existsOnce   sync.Once
	existsResult bool
}

// NewPostgresGateway constructs a gateway bound to db.
func NewPostgresGateway(db *sqlx.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

func normalizeShift(shift string) string {
	return strings.ToLower(strings.TrimSpace(shift))
}

func positiveInts(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// FetchTimeGrid returns the (day -> periods) mapping for (school, shift).
func (g *PostgresGateway) FetchTimeGrid(ctx context.Context, schoolID int, shift string) (TimeGrid, error) {
	if schoolID <= 0 {
		return TimeGrid{}, nil
	}
	shift = normalizeShift(shift)

	const query = `
SELECT day, ordem, start_time, end_time
FROM time_grid_periods
WHERE school_id = $1 AND shift = $2
ORDER BY day ASC, ordem ASC`

	type row struct {
		Day   int    `db:"day"`
		Ordem int    `db:"ordem"`
		Start string `db:"start_time"`
		End   string `db:"end_time"`
	}
	var rows []row
	if err := g.db.SelectContext(ctx, &rows, query, schoolID, shift); err != nil {
		return nil, fmt.Errorf("fetch time grid: %w", err)
	}

	grid := TimeGrid{}
	for _, r := range rows {
		grid[r.Day] = append(grid[r.Day], Period{Ordem: r.Ordem, Start: r.Start, End: r.End})
	}
	return grid, nil
}

// FetchClasses returns classes for the given ids, scoped to school/shift.
func (g *PostgresGateway) FetchClasses(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Class, error) {
	classIDs = positiveInts(classIDs)
	if schoolID <= 0 || len(classIDs) == 0 {
		return []Class{}, nil
	}
	shift = normalizeShift(shift)

	query, args, err := sqlx.In(`
SELECT id, name, stage, series, shift
FROM classes
WHERE school_id = ? AND shift = ? AND id IN (?)
ORDER BY id ASC`, schoolID, shift, classIDs)
	if err != nil {
		return nil, fmt.Errorf("build classes query: %w", err)
	}
	query = g.db.Rebind(query)

	var classes []Class
	if err := g.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("fetch classes: %w", err)
	}
	return classes, nil
}

// FetchDemand returns per-(class,subject) weekly lesson counts.
func (g *PostgresGateway) FetchDemand(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Demand, error) {
	classIDs = positiveInts(classIDs)
	if schoolID <= 0 || len(classIDs) == 0 {
		return []Demand{}, nil
	}

	query, args, err := sqlx.In(`
SELECT tc.class_id, tc.subject_id, tc.weekly_lessons
FROM turma_cargas tc
JOIN classes c ON c.id = tc.class_id
WHERE c.school_id = ? AND tc.class_id IN (?)
ORDER BY tc.class_id ASC, tc.subject_id ASC`, schoolID, classIDs)
	if err != nil {
		return nil, fmt.Errorf("build demand query: %w", err)
	}
	query = g.db.Rebind(query)

	var demand []Demand
	if err := g.db.SelectContext(ctx, &demand, query, args...); err != nil {
		return nil, fmt.Errorf("fetch demand: %w", err)
	}
	return demand, nil
}

// FetchAssignments returns the teacher bound to each (class, subject) pair.
// When duplicate rows exist for the same pair, the first by ascending id wins.
func (g *PostgresGateway) FetchAssignments(ctx context.Context, schoolID int, classIDs []int) ([]Assignment, error) {
	classIDs = positiveInts(classIDs)
	if schoolID <= 0 || len(classIDs) == 0 {
		return []Assignment{}, nil
	}

	query, args, err := sqlx.In(`
SELECT DISTINCT ON (m.class_id, m.subject_id) m.teacher_id, m.class_id, m.subject_id
FROM modulacao m
JOIN classes c ON c.id = m.class_id
WHERE c.school_id = ? AND m.class_id IN (?)
ORDER BY m.class_id ASC, m.subject_id ASC, m.id ASC`, schoolID, classIDs)
	if err != nil {
		return nil, fmt.Errorf("build assignments query: %w", err)
	}
	query = g.db.Rebind(query)

	var assignments []Assignment
	if err := g.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("fetch assignments: %w", err)
	}
	return assignments, nil
}

// FetchAvailabilities returns raw per-(teacher,day,period) free slots,
// transparently parsing the serialized period-list representation.
func (g *PostgresGateway) FetchAvailabilities(ctx context.Context, schoolID int, shift string, teacherIDs []string) ([]AvailabilityRow, error) {
	if schoolID <= 0 || len(teacherIDs) == 0 {
		return []AvailabilityRow{}, nil
	}
	shift = normalizeShift(shift)

	query, args, err := sqlx.In(`
SELECT teacher_id, day, periods
FROM teacher_availabilities
WHERE school_id = ? AND shift = ? AND teacher_id IN (?)
ORDER BY teacher_id ASC, day ASC`, schoolID, shift, teacherIDs)
	if err != nil {
		return nil, fmt.Errorf("build availabilities query: %w", err)
	}
	query = g.db.Rebind(query)

	type row struct {
		TeacherID string `db:"teacher_id"`
		Day       int    `db:"day"`
		Periods   []byte `db:"periods"`
	}
	var rows []row
	if err := g.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch availabilities: %w", err)
	}

	out := make([]AvailabilityRow, 0, len(rows))
	for _, r := range rows {
		for _, entry := range parseAvailabilityPeriods(r.Periods) {
			out = append(out, AvailabilityRow{
				TeacherID:   r.TeacherID,
				Day:         r.Day,
				PeriodOrdem: entry.Ordem,
				Status:      entry.Status,
			})
		}
	}
	return out, nil
}

type availabilityPeriodEntry struct {
	Ordem  int    `json:"ordem"`
	Status string `json:"status"`
}

// parseAvailabilityPeriods accepts a JSON array, a JSON-encoded string of an
// array, or an already-materialized array, degrading to an empty list on any
// parse failure instead of failing the request (see spec design notes).
func parseAvailabilityPeriods(raw []byte) []availabilityPeriodEntry {
	if len(raw) == 0 {
		return nil
	}
	var entries []availabilityPeriodEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var nested []availabilityPeriodEntry
		if err := json.Unmarshal([]byte(asString), &nested); err == nil {
			return nested
		}
	}
	return nil
}

// FetchPreferences returns raw per-teacher preference payloads.
func (g *PostgresGateway) FetchPreferences(ctx context.Context, schoolID int, shift string, teacherIDs []string) (map[string]json.RawMessage, error) {
	if schoolID <= 0 || len(teacherIDs) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	shift = normalizeShift(shift)

	query, args, err := sqlx.In(`
SELECT teacher_id, rules
FROM teacher_schedule_preferences
WHERE school_id = ? AND shift = ? AND teacher_id IN (?)`, schoolID, shift, teacherIDs)
	if err != nil {
		return nil, fmt.Errorf("build preferences query: %w", err)
	}
	query = g.db.Rebind(query)

	type row struct {
		TeacherID string          `db:"teacher_id"`
		Rules     json.RawMessage `db:"rules"`
	}
	var rows []row
	if err := g.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch preferences: %w", err)
	}

	out := make(map[string]json.RawMessage, len(rows))
	for _, r := range rows {
		out[r.TeacherID] = r.Rules
	}
	return out, nil
}

// FetchLocks returns pre-pinned cells for the given classes.
func (g *PostgresGateway) FetchLocks(ctx context.Context, schoolID int, shift string, classIDs []int) ([]Lock, error) {
	classIDs = positiveInts(classIDs)
	if schoolID <= 0 || len(classIDs) == 0 {
		return []Lock{}, nil
	}
	shift = normalizeShift(shift)

	query, args, err := sqlx.In(`
SELECT class_id, day, period_ordem, subject_id, teacher_id
FROM schedule_locks
WHERE school_id = ? AND shift = ? AND class_id IN (?)
ORDER BY class_id ASC, day ASC, period_ordem ASC`, schoolID, shift, classIDs)
	if err != nil {
		return nil, fmt.Errorf("build locks query: %w", err)
	}
	query = g.db.Rebind(query)

	var locks []Lock
	if err := g.db.SelectContext(ctx, &locks, query, args...); err != nil {
		return nil, fmt.Errorf("fetch locks: %w", err)
	}
	return locks, nil
}

// FetchPedagogicalConfig returns the stored rule set, or nil if absent.
func (g *PostgresGateway) FetchPedagogicalConfig(ctx context.Context, schoolID int, shift string, yearRef *int, level string) (*PedagogicalConfig, error) {
	if schoolID <= 0 || yearRef == nil {
		return nil, nil
	}
	shift = normalizeShift(shift)

	const query = `
SELECT rules
FROM pedagogical_configs
WHERE school_id = $1 AND shift = $2 AND year_ref = $3 AND level = $4`
	var raw json.RawMessage
	if err := g.db.GetContext(ctx, &raw, query, schoolID, shift, *yearRef, level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch pedagogical config: %w", err)
	}

	var payload struct {
		RC01 *RC01Rule `json:"rc01"`
		RC02 *RC02Rule `json:"rc02"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode pedagogical config: %w", err)
	}

	cfg := DefaultPedagogicalConfig(level)
	if payload.RC01 != nil {
		cfg.RC01 = *payload.RC01
	}
	if payload.RC02 != nil {
		cfg.RC02 = *payload.RC02
		if cfg.RC02.PerSubject == nil {
			cfg.RC02.PerSubject = map[string]int{}
		}
	}
	return &cfg, nil
}

// PedagogicalConfigStoreExists caches, once per process, whether the rules
// table is present at all so the loader can degrade gracefully.
func (g *PostgresGateway) PedagogicalConfigStoreExists(ctx context.Context) bool {
	g.existsOnce.Do(func() {
		const query = `SELECT to_regclass('public.pedagogical_configs') IS NOT NULL`
		var exists bool
		if err := g.db.GetContext(ctx, &exists, query); err == nil {
			g.existsResult = exists
		}
	})
	return g.existsResult
}
