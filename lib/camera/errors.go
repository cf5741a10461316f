// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package camera

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError is returned when the camera service answers with a
// non-2xx status. Body holds the (bounded) response body for display.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("camera service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("camera service returned %d: %s", e.StatusCode, Excerpt(e.Body, 120))
}

// Unauthorized reports whether the status indicates a rejected or
// missing API key.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// statusErr converts a response into a *StatusError when the status is
// outside the 2xx range, and nil otherwise.
func statusErr(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// IsTimeout reports whether err stems from a deadline rather than a
// refused or failed connection. Remote probes use this to phrase the
// result: a timeout on a fresh hostname usually means DNS has not
// propagated yet, not that the route is broken.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
