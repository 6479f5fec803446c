// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package apiclient

import (
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of a failed response body is retained.
const maxErrorBody = 4096

// ResponseError describes a failed API response. It unwraps to one of
// ErrUnauthorized, ErrForbidden, ErrServer or ErrUnexpectedStatus.
type ResponseError struct {
	StatusCode     int
	Method         string
	URL            string
	OrganizationID string
	Body           string

	class error
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.URL, e.StatusCode, e.class)
}

// Unwrap returns the response class.
func (e *ResponseError) Unwrap() error {
	return e.class
}

// classify returns the class of a status code, or nil when the response
// passes through untouched.
func classify(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status >= http.StatusInternalServerError:
		return ErrServer
	default:
		return nil
	}
}

func newResponseError(req *http.Request, resp *http.Response, class error) *ResponseError {
	re := &ResponseError{
		StatusCode:     resp.StatusCode,
		Method:         req.Method,
		URL:            req.URL.Redacted(),
		OrganizationID: req.Header.Get(OrganizationHeader),
		class:          class,
	}
	if resp.Body != nil {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		re.Body = string(b)
	}
	return re
}
