package dto

// PreSolveRequest drives the pre-solve endpoint: validate a scheduling
// scope without running the solver.
type PreSolveRequest struct {
	Shift    string `json:"shift" validate:"required"`
	ClassIDs []int  `json:"classIds" validate:"required,min=1,dive,min=1"`
}

// RunMockRequest drives the run-mock endpoint. ClassIDs accepts either a
// JSON array of positive ints or a comma-separated string such as
// "1,2,3"; ParseClassIDs normalizes both into []int.
type RunMockRequest struct {
	Shift    string `json:"shift" validate:"required"`
	ClassIDs any    `json:"classIds" validate:"required"`
	YearRef  *int   `json:"yearRef" validate:"omitempty,min=2000,max=2100"`
	Level    string `json:"level"`
}

// ValidationIssueDTO mirrors timetablecore.ValidationIssue on the wire.
type ValidationIssueDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PreSolveResponse is the pre-solve endpoint's wire contract:
// { pre_solve: {errors, warnings, stats}, payload: ProblemInstance }.
type PreSolveResponse struct {
	PreSolve PreSolveSummary `json:"pre_solve"`
	Payload  any             `json:"payload"`
}

// PreSolveSummary carries the validator's findings.
type PreSolveSummary struct {
	Errors   []ValidationIssueDTO `json:"errors"`
	Warnings []ValidationIssueDTO `json:"warnings"`
	Stats    any                  `json:"stats"`
}
