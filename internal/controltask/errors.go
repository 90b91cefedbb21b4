package controltask

import "errors"

var (
	// ErrConfigPathUnresolved indicates no configuration file could be located.
	ErrConfigPathUnresolved = errors.New("controltask: configuration path unresolved")

	// ErrConfigParseFailure indicates the configuration file exists but could not be parsed.
	ErrConfigParseFailure = errors.New("controltask: configuration parse failure")

	// ErrCalibrationParseFailure indicates the calibration table could not be loaded.
	ErrCalibrationParseFailure = errors.New("controltask: calibration table parse failure")

	// ErrInvalidInput indicates structurally invalid compute inputs.
	ErrInvalidInput = errors.New("controltask: invalid input")

	// ErrComputationFailure indicates the controller could not produce a valid command.
	ErrComputationFailure = errors.New("controltask: computation failure")

	// ErrAlreadyInitialized is returned by tasks that reject a repeated Init.
	ErrAlreadyInitialized = errors.New("controltask: already initialized")

	// ErrNotInitialized indicates a lifecycle call before a successful Init.
	ErrNotInitialized = errors.New("controltask: not initialized")

	// ErrStopped indicates a lifecycle call after Stop.
	ErrStopped = errors.New("controltask: stopped")

	// ErrUnknownTask indicates no factory is registered under a name.
	ErrUnknownTask = errors.New("controltask: unknown task")
)

// TaskError wraps a lifecycle failure with the task and operation.
type TaskError struct {
	Task    string
	Op      string
	Wrapped error
}

func (e *TaskError) Error() string {
	return e.Task + " " + e.Op + ": " + e.Wrapped.Error()
}

func (e *TaskError) Unwrap() error {
	return e.Wrapped
}

// Wrap returns err annotated with the task name and operation, or nil.
func Wrap(task, op string, err error) error {
	if err == nil {
		return nil
	}
	return &TaskError{Task: task, Op: op, Wrapped: err}
}
