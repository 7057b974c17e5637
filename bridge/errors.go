package bridge

// OpError reports which bridge operation failed. Err carries the error
// kind and matches the sentinels in package types under errors.Is.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}
