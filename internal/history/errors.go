package history

import "errors"

// Error taxonomy for a run. Callers classify with errors.Is.
var (
	// ErrUnrecognizedFormat means the input did not match any known schema.
	ErrUnrecognizedFormat = errors.New("unrecognized location history format")
	// ErrInputNotFound means the input path could not be opened.
	ErrInputNotFound = errors.New("input not found")
	// ErrRecordExtraction marks a single element that was skipped.
	ErrRecordExtraction = errors.New("record extraction failed")
	// ErrStructuralParse means the JSON token stream became invalid part way
	// through; points read before the fault are kept.
	ErrStructuralParse = errors.New("structural parse fault")
	// ErrUnexpectedFatal covers every other failure; no output is produced.
	ErrUnexpectedFatal = errors.New("unexpected fatal error")
)
