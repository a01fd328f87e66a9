package identifier

import "strings"

// Operation is a registrar lifecycle operation.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationMint   Operation = "mint"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationMint:
		return true
	}
	return false
}

// ParseOperation converts a case-insensitive name into an Operation.
func ParseOperation(s string) (Operation, bool) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	return op, op.Valid()
}

// Result is the parsed outcome of a registrar response.
type Result struct {
	// Success is true when the response carried a "success" record.
	Success bool

	// Metadata holds every key/value record of a successful response.
	Metadata map[string]string

	// Message is the full raw response body of an unsuccessful response.
	Message string
}

// Identifier returns the identifier reported by a successful response.
// EZID answers "success: ark:/99999/fk4abc | ark:/b99999/fk4abc" for mints
// and "success: ark:/99999/fk4abc" for other operations.
func (r Result) Identifier() string {
	if !r.Success {
		return ""
	}
	value := r.Metadata["success"]
	if i := strings.Index(value, "|"); i >= 0 {
		value = value[:i]
	}
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Success builds a successful Result.
func Success(metadata map[string]string) Result {
	return Result{Success: true, Metadata: metadata}
}

// Failure builds an unsuccessful Result.
func Failure(message string) Result {
	return Result{Success: false, Message: message}
}
