package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edu-scheduling/campus-timetable/internal/dto"
	"github.com/edu-scheduling/campus-timetable/internal/timetablecore"
	appErrors "github.com/edu-scheduling/campus-timetable/pkg/errors"
	"github.com/edu-scheduling/campus-timetable/pkg/middleware/requestid"
	"github.com/edu-scheduling/campus-timetable/pkg/response"
)

type timetableCore interface {
	PreSolve(ctx context.Context, schoolID int, req dto.PreSolveRequest) (*timetablecore.PreSolveResult, error)
	RunMock(ctx context.Context, schoolID int, traceID string, req dto.RunMockRequest) (*timetablecore.RunMockResult, error)
}

// TimetableCoreHandler exposes the pre-solve and run-mock scheduling
// endpoints described by the timetable scheduling core.
type TimetableCoreHandler struct {
	service timetableCore
}

// NewTimetableCoreHandler constructs the handler.
func NewTimetableCoreHandler(svc timetableCore) *TimetableCoreHandler {
	return &TimetableCoreHandler{service: svc}
}

// PreSolve godoc
// @Summary Validate a scheduling scope without solving
// @Description Builds the problem instance for (shift, classIds) and runs the pre-solve validator, always returning the instance payload alongside the report.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.PreSolveRequest true "Pre-solve scope"
// @Success 200 {object} response.Envelope
// @Router /schedule/pre-solve [post]
func (h *TimetableCoreHandler) PreSolve(c *gin.Context) {
	schoolID, ok := schoolIDFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing school scope"))
		return
	}

	var req dto.PreSolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pre-solve payload"))
		return
	}

	result, err := h.service.PreSolve(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.PreSolveResponse{
		PreSolve: dto.PreSolveSummary{
			Errors:   toIssueDTOs(result.Report.Errors),
			Warnings: toIssueDTOs(result.Report.Warnings),
			Stats:    result.Report.Stats,
		},
		Payload: result.Instance,
	}, nil)
}

// RunMock godoc
// @Summary Build, validate and solve a mock timetable
// @Description Runs the full pipeline (payload build, pre-solve validation, greedy solve, diagnostics) and returns dense per-class and per-teacher grids.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.RunMockRequest true "Run-mock scope"
// @Success 200 {object} response.Envelope
// @Router /schedule/run-mock [post]
func (h *TimetableCoreHandler) RunMock(c *gin.Context) {
	schoolID, ok := schoolIDFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing school scope"))
		return
	}

	var req dto.RunMockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run-mock payload"))
		return
	}

	traceID := requestid.Value(c)
	result, err := h.service.RunMock(c.Request.Context(), schoolID, traceID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func toIssueDTOs(issues []timetablecore.ValidationIssue) []dto.ValidationIssueDTO {
	out := make([]dto.ValidationIssueDTO, 0, len(issues))
	for _, i := range issues {
		out = append(out, dto.ValidationIssueDTO{Code: i.Code, Message: i.Message})
	}
	return out
}
