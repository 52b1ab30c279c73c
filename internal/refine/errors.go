package refine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when Run is called with bad parameters.
	// No collaborator call is made in that case.
	ErrInvalidConfig = errors.New("invalid refinement config")

	// ErrCollaborator matches every *CollaboratorError via errors.Is.
	ErrCollaborator = errors.New("collaborator failure")

	// ErrInvalidEvaluation is wrapped when the evaluator breaks its contract.
	ErrInvalidEvaluation = errors.New("invalid evaluation")

	// ErrEmptyArtifact is wrapped when the generator returns blank text.
	ErrEmptyArtifact = errors.New("empty artifact")
)

// Operation names used in CollaboratorError.
const (
	OpGenerate = "generate"
	OpEvaluate = "evaluate"
)

// CollaboratorError reports a failed or malformed collaborator call.
type CollaboratorError struct {
	Op        string
	Iteration int
	Err       error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed at iteration %d: %v", e.Op, e.Iteration, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCollaborator) hold for any CollaboratorError.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaborator
}
