package session

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned by a Locator the user declined.
var ErrPermissionDenied = errors.New("location permission denied")

type Locator interface {
	Locate(ctx context.Context) (lat, lng float64, err error)
}

// Fixed reports coordinates supplied by the client, or ErrPermissionDenied
// when the client declined to share them.
type Fixed struct {
	Lat, Lng float64
	Denied   bool
}

func (f Fixed) Locate(context.Context) (float64, float64, error) {
	if f.Denied {
		return 0, 0, ErrPermissionDenied
	}
	return f.Lat, f.Lng, nil
}
