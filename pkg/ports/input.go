package ports

import "context"

// InputProvider supplies the value requested at a suspension point. The run
// loop calls it when a node returns StatusAwaitingInput; nodes themselves
// never block on I/O.
type InputProvider interface {
	ReadInput(ctx context.Context) (string, error)
}

// InputFunc adapts a plain function to the InputProvider interface.
type InputFunc func(ctx context.Context) (string, error)

func (f InputFunc) ReadInput(ctx context.Context) (string, error) { return f(ctx) }

// ScriptedInput returns a provider that replays the given values in order.
// Useful for tests and non-interactive runs. When the script is exhausted it
// returns empty strings.
func ScriptedInput(values ...string) InputProvider {
	i := 0
	return InputFunc(func(ctx context.Context) (string, error) {
		if i >= len(values) {
			return "", nil
		}
		v := values[i]
		i++
		return v, nil
	})
}
