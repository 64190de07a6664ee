package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edu-scheduling/campus-timetable/internal/dto"
	"github.com/edu-scheduling/campus-timetable/internal/timetablecore"
	appErrors "github.com/edu-scheduling/campus-timetable/pkg/errors"
)

// TimetableCoreService adapts the timetablecore façade to the codebase's
// request/response and error-handling conventions.
type TimetableCoreService struct {
	core      *timetablecore.Core
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableCoreService constructs the service.
func NewTimetableCoreService(core *timetablecore.Core, validate *validator.Validate, logger *zap.Logger) *TimetableCoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableCoreService{core: core, validator: validate, logger: logger}
}

// PreSolve validates req and runs the Pre-Solve Validator over the built
// instance, never invoking the solver.
func (s *TimetableCoreService) PreSolve(ctx context.Context, schoolID int, req dto.PreSolveRequest) (*timetablecore.PreSolveResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, 400, "invalid pre-solve payload")
	}
	if schoolID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing school scope")
	}

	result, err := s.core.PreSolve(ctx, timetablecore.BuildRequest{
		SchoolID: schoolID,
		Shift:    req.Shift,
		ClassIDs: req.ClassIDs,
	})
	if err != nil {
		s.logger.Error("pre-solve failed", zap.Int("schoolId", schoolID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build schedule payload")
	}
	return result, nil
}

// RunMock builds, validates, and solves req, returning the full wire-shaped
// mock schedule.
func (s *TimetableCoreService) RunMock(ctx context.Context, schoolID int, traceID string, req dto.RunMockRequest) (*timetablecore.RunMockResult, error) {
	classIDs, err := ParseClassIDs(req.ClassIDs)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if strings.TrimSpace(req.Shift) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "shift is required")
	}
	if len(classIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classIds must be a non-empty list of positive integers")
	}
	if schoolID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing school scope")
	}

	result, err := s.core.RunMock(ctx, timetablecore.BuildRequest{
		SchoolID: schoolID,
		Shift:    req.Shift,
		YearRef:  req.YearRef,
		Level:    req.Level,
		ClassIDs: classIDs,
	}, traceID)
	if err != nil {
		s.logger.Error("run-mock failed", zap.Int("schoolId", schoolID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to run schedule mock")
	}
	return result, nil
}

// ParseClassIDs accepts a JSON number array or a comma-separated string
// ("1,2,3") and normalizes both into a sorted slice of positive ints.
func ParseClassIDs(raw any) ([]int, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("classIds is required")
	case string:
		return parseClassIDsString(v)
	case []int:
		return v, nil
	case []any:
		ids := make([]int, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				ids = append(ids, int(n))
			case string:
				id, err := strconv.Atoi(strings.TrimSpace(n))
				if err != nil {
					return nil, fmt.Errorf("classIds contains a non-integer value")
				}
				ids = append(ids, id)
			default:
				return nil, fmt.Errorf("classIds contains an unsupported value type")
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("classIds must be an array of ints or a comma-separated string")
	}
}

func parseClassIDsString(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("classIds is required")
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("classIds contains a non-integer value %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
