package timetablecore

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Core is the façade spec.md's external interfaces bind to: it wires the
// Payload Builder, Pre-Solve Validator, Greedy Solver and Diagnostic
// Reporter into the two operations callers invoke.
type Core struct {
	builder *PayloadBuilder
	logger  *zap.Logger
}

// NewCore constructs the façade bound to builder.
func NewCore(builder *PayloadBuilder, logger *zap.Logger) *Core {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Core{builder: builder, logger: logger}
}

// PreSolveResult bundles the validator report with the built instance.
type PreSolveResult struct {
	Report   ValidationReport
	Instance *ProblemInstance
}

// PreSolve builds the ProblemInstance for req and runs the Pre-Solve
// Validator over it without invoking the solver. Errors returned here are
// infrastructure failures only; data-quality problems live in the report.
func (c *Core) PreSolve(ctx context.Context, req BuildRequest) (*PreSolveResult, error) {
	instance, err := c.builder.Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pre-solve: %w", err)
	}
	report := Validate(instance)
	return &PreSolveResult{Report: report, Instance: instance}, nil
}

// RunMockResult is the full run-mock payload, field names matching the
// wire contract's snake_case keys verbatim.
type RunMockResult struct {
	OK              bool                        `json:"ok"`
	TraceID         string                      `json:"traceId"`
	PayloadSummary  PayloadSummary              `json:"payload_summary"`
	GradePorTurma   map[string]DenseClassView   `json:"grade_por_turma"`
	GradePorProfessor map[string]DenseTeacherView `json:"grade_por_professor"`
	Diagnostico     DiagnosticoView             `json:"diagnostico"`
	Metrics         Metrics                     `json:"metrics"`
}

// PayloadSummary is the compact instance summary surfaced alongside a
// run-mock response.
type PayloadSummary struct {
	SchoolID string `json:"schoolId"`
	Shift    string `json:"shift"`
	YearRef  *int   `json:"yearRef"`
	Level    string `json:"level"`
	Classes  int    `json:"classes"`
	Demand   int    `json:"demand"`
	Teachers int    `json:"teachers"`
}

// DenseClassView is the JSON-facing day->period->cell view of a ClassGrid.
type DenseClassView map[int]map[int]*ClassCell

// DenseTeacherView is the JSON-facing day->period->cell view of a TeacherGrid.
type DenseTeacherView map[int]map[int]*TeacherCell

// DiagnosticoView mirrors the wire contract's Portuguese field names.
type DiagnosticoView struct {
	NaoAlocadas []UnplacedLesson `json:"nao_alocadas"`
	Contadores  map[string]int   `json:"contadores"`
}

// RunMock builds the instance, validates it (report-only), solves it, and
// returns the full wire-shaped result. traceID is supplied by the caller
// (typically the request id already attached to the context).
func (c *Core) RunMock(ctx context.Context, req BuildRequest, traceID string) (*RunMockResult, error) {
	instance, err := c.builder.Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("run mock: %w", err)
	}

	report := Validate(instance)
	if len(report.Errors) > 0 {
		c.logger.Debug("run-mock proceeding despite validator errors",
			zap.Int("errorCount", len(report.Errors)), zap.String("traceId", traceID))
	}

	schedule := Solve(ctx, instance)

	result := &RunMockResult{
		OK:      true,
		TraceID: traceID,
		PayloadSummary: PayloadSummary{
			SchoolID: instance.SchoolID,
			Shift:    instance.Shift,
			YearRef:  instance.YearRef,
			Level:    instance.Level,
			Classes:  len(instance.Classes),
			Demand:   len(instance.Demand),
			Teachers: len(instance.Teachers),
		},
		GradePorTurma:     classViews(schedule.PerClassGrid),
		GradePorProfessor: teacherViews(schedule.PerTeacherGrid),
		Diagnostico: DiagnosticoView{
			NaoAlocadas: schedule.Diagnostic.Unplaced,
			Contadores:  schedule.Diagnostic.Counters,
		},
		Metrics: schedule.Metrics,
	}
	return result, nil
}

func classViews(grids map[string]ClassGrid) map[string]DenseClassView {
	out := make(map[string]DenseClassView, len(grids))
	ids := make([]string, 0, len(grids))
	for id := range grids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out[id] = DenseClassView(grids[id])
	}
	return out
}

func teacherViews(grids map[string]TeacherGrid) map[string]DenseTeacherView {
	out := make(map[string]DenseTeacherView, len(grids))
	ids := make([]string, 0, len(grids))
	for id := range grids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out[id] = DenseTeacherView(grids[id])
	}
	return out
}
