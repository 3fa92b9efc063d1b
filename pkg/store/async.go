package store

import (
	"context"
	"fmt"
)

// Suffixes of the actions dispatched by AsyncMiddleware.
const (
	PendingSuffix = "_PENDING"
	SuccessSuffix = "_SUCCESS"
	ErrorSuffix   = "_ERROR"
)

// AsyncMiddleware executes Request actions. The returned error is the
// request error, so server-side callers can abort rendering on failure.
// Panics inside Do are converted into errors.
func AsyncMiddleware() Middleware {
	return func(api API) func(next DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(ctx context.Context, a Action) error {
				req, ok := a.(Request)
				if !ok {
					return next(ctx, a)
				}
				if req.Do == nil {
					return fmt.Errorf("store: request %q has no Do function", req.Event)
				}

				if err := api.Dispatch(ctx, Custom{Name: req.Event + PendingSuffix}); err != nil {
					return err
				}

				result, err := runRequest(ctx, req)
				if err != nil {
					if derr := api.Dispatch(ctx, Custom{Name: req.Event + ErrorSuffix, Payload: err}); derr != nil {
						return derr
					}
					return err
				}
				return api.Dispatch(ctx, Custom{Name: req.Event + SuccessSuffix, Payload: result})
			}
		}
	}
}

func runRequest(ctx context.Context, req Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store: request %q panicked: %v", req.Event, r)
		}
	}()
	return req.Do(ctx)
}
