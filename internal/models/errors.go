package models

import "fmt"

// ConnectionError reports an open, authentication or network failure
type ConnectionError struct {
	Message string
	Detail  string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError wraps err with the standard connection message
func NewConnectionError(err error) *ConnectionError {
	ce := &ConnectionError{
		Message: "Unable to connect to the database",
		Err:     err,
	}
	if err != nil {
		ce.Detail = err.Error()
	}
	return ce
}

// StatementError reports a failed SQL statement with the text that failed
type StatementError struct {
	Statement string
	Message   string
	Err       error
}

func (e *StatementError) Error() string {
	return e.Message
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// NewStatementError wraps err for statement
func NewStatementError(statement string, err error) *StatementError {
	return &StatementError{
		Statement: statement,
		Message:   err.Error(),
		Err:       err,
	}
}

// NotFoundError reports a stale or removed catalog node
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Name)
}
