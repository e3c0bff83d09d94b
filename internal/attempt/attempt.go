// Package attempt runs an ordered list of strategies until one succeeds.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Strategy is one way of performing an operation.
type Strategy[T any] struct {
	Name string
	Do   func(ctx context.Context) (T, error)
}

// ExhaustedError is returned when every strategy failed.
type ExhaustedError struct {
	Names []string
	Err   error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all attempts failed (%s): %v", strings.Join(e.Names, ", "), e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as final: Run returns it without trying the remaining
// strategies.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Run tries each strategy in order and returns the first success. Each
// strategy is invoked at most once. A cancelled context stops the sequence.
func Run[T any](ctx context.Context, strategies ...Strategy[T]) (T, error) {
	var zero T
	if len(strategies) == 0 {
		return zero, errors.New("attempt: no strategies")
	}

	var errs []error
	names := make([]string, 0, len(strategies))

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		names = append(names, s.Name)
		v, err := s.Do(ctx)
		if err == nil {
			return v, nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return zero, fmt.Errorf("%s: %w", s.Name, p.err)
		}

		logrus.WithField("strategy", s.Name).Warnf("Attempt failed: %v", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}

	return zero, &ExhaustedError{Names: names, Err: errors.Join(errs...)}
}
