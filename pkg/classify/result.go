package classify

// Result is the outcome of one classification: a label, or the reason there
// is none. A failed Result never carries a meaningful Label.
type Result[L any] struct {
	Label L
	Err   error
}

// Ok returns a successful result.
func Ok[L any](label L) Result[L] {
	return Result[L]{Label: label}
}

// Failed returns a failed result.
func Failed[L any](err error) Result[L] {
	return Result[L]{Err: err}
}

// OK reports whether the classification succeeded.
func (r Result[L]) OK() bool {
	return r.Err == nil
}

// Or returns the label, or sentinel if the classification failed.
func (r Result[L]) Or(sentinel L) L {
	if r.Err != nil {
		return sentinel
	}
	return r.Label
}
