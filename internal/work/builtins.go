package work

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mattjoyce/arenakernel/internal/arena"
)

// maxSleep bounds the sleep builtin.
const maxSleep = time.Minute

// Builtins returns a registry holding the stock commands:
//
//	square x        x*x
//	sum x...        sum of the arguments
//	echo a...       the arguments, or kwargs["value"] when given
//	sleep seconds   waits, then returns the duration slept
//	fail [message]  always fails
//	scratch k v     stores v under k in the executing arena
func Builtins() *Registry {
	r := NewRegistry()
	_ = r.Register("square", square)
	_ = r.Register("sum", sum)
	_ = r.Register("echo", echo)
	_ = r.Register("sleep", sleep)
	_ = r.Register("fail", fail)
	_ = r.Register("scratch", scratch)
	return r
}

func square(_ context.Context, args []any, _ map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("square takes 1 argument, got %d", len(args))
	}
	x, err := Number(args[0])
	if err != nil {
		return nil, err
	}
	return x * x, nil
}

func sum(_ context.Context, args []any, _ map[string]any) (any, error) {
	var total float64
	for _, a := range args {
		x, err := Number(a)
		if err != nil {
			return nil, err
		}
		total += x
	}
	return total, nil
}

func echo(_ context.Context, args []any, kwargs map[string]any) (any, error) {
	if v, ok := kwargs["value"]; ok {
		return v, nil
	}
	return args, nil
}

func sleep(ctx context.Context, args []any, _ map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("sleep takes 1 argument, got %d", len(args))
	}
	secs, err := Number(args[0])
	if err != nil {
		return nil, err
	}
	d := time.Duration(secs * float64(time.Second))
	if d < 0 || d > maxSleep {
		return nil, fmt.Errorf("sleep duration %s out of range", d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return d.String(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func fail(_ context.Context, args []any, _ map[string]any) (any, error) {
	msg := "fail"
	if len(args) > 0 {
		msg = fmt.Sprint(args[0])
	}
	return nil, errors.New(msg)
}

func scratch(ctx context.Context, args []any, _ map[string]any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("scratch takes 2 arguments, got %d", len(args))
	}
	key, ok := args[0].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("scratch key must be a non-empty string")
	}
	if key == arena.CurrentTaskKey {
		return nil, fmt.Errorf("scratch key %q is reserved", key)
	}
	a, ok := arena.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("scratch needs an arena")
	}
	a.Allocate(key, args[1])
	return a.Name(), nil
}

// Number converts a decoded JSON or CLI value to float64.
func Number(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case interface{ Float64() (float64, error) }:
		return n.Float64()
	default:
		return math.NaN(), fmt.Errorf("%v (%T) is not a number", v, v)
	}
}
