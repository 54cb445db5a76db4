package health

// Checker reports whether a dependency of the service is usable.
type Checker interface {
	Check() error
}

// CheckerFunc adapts a plain function to a Checker.
type CheckerFunc func() error

func (f CheckerFunc) Check() error {
	return f()
}
