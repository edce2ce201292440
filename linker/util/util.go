package util

type Pass[T any] interface {
	Process(T)
}

// Runs passes in order.  Each pass runs to completion; the sequence stops
// early once shouldEarlyExit returns true.
func Process[T any](
	node T,
	passes []Pass[T],
	shouldEarlyExit func() bool, // optional
) {
	for _, pass := range passes {
		pass.Process(node)

		if shouldEarlyExit != nil && shouldEarlyExit() {
			return
		}
	}
}
