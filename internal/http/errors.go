// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package http

import (
	"fmt"
	"net/http"
)

// StatusError is returned when the upstream API responds with a non-2xx status code.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("upstream returned HTTP %s", e.Status)
	}
	return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
}

// Retryable reports whether the status code belongs to the retryable classes (429 and 5xx).
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// NetworkError wraps connection, timeout and DNS failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	switch e := err.(type) {
	case *StatusError:
		return e.Retryable()
	case *NetworkError:
		return true
	}
	return false
}
