package modelica

// FatalError marks a failure that dooms every remaining case in the batch,
// such as the compiler binary being absent. The batch stops instead of
// logging the same failure once per case.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
