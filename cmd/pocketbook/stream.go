package main

import (
	"context"
	"errors"

	"pocketbook/internal/docstore"
)

// firstValue waits for the initial emission of s and disposes it.
func firstValue[T any](ctx context.Context, s *docstore.Stream[T]) (T, error) {
	defer s.Dispose()
	var zero T
	select {
	case v, ok := <-s.C():
		if !ok {
			if err := s.Err(); err != nil {
				return zero, err
			}
			return zero, errors.New("stream closed before its first value")
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// eachValue calls fn for every emission of s until ctx is cancelled or the
// stream fails.
func eachValue[T any](ctx context.Context, s *docstore.Stream[T], fn func(T)) error {
	defer s.Dispose()
	for {
		select {
		case v, ok := <-s.C():
			if !ok {
				return s.Err()
			}
			fn(v)
		case <-ctx.Done():
			return nil
		}
	}
}

// show prints the first value of s, or every value with --watch.
func show[T any](ctx context.Context, s *docstore.Stream[T], fn func(T)) error {
	if flagWatch {
		return eachValue(ctx, s, fn)
	}
	v, err := firstValue(ctx, s)
	if err != nil {
		return err
	}
	fn(v)
	return nil
}
