package retry

// Action is a unit of work that may fail transiently.
type Action func() error

// Retrier runs actions under a fixed set of strategies.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier binds strategies to a reusable Retrier. With no strategies the
// action is retried until it succeeds.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{strategies: strategies}
}

func (r *retrier) Retry(action Action) (uint, error) {
	return Retry(action, r.strategies...)
}

// Retry runs action until it succeeds or a strategy declines another attempt,
// returning the number of attempts made and the last error.
//
// Strategies are consulted in order after each failure and the first one to
// decline ends the loop, so strategies that sleep belong at the end.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		attempts++

		err := action()
		if err == nil {
			return attempts, nil
		}

		for _, strategy := range strategies {
			if !strategy(attempts, err) {
				return attempts, err
			}
		}
	}
}
