package main

import (
	"errors"
	"fmt"

	"libreeze/internal/backend"
)

// errMessage renders err for a person at a terminal.
func errMessage(err error) string {
	var (
		authErr    *backend.AuthError
		netErr     *backend.NetworkError
		backendErr *backend.BackendError
	)
	switch {
	case errors.Is(err, backend.ErrNotAuthenticated):
		return "You are not signed in. Run `libreeze auth login` first."
	case errors.Is(err, backend.ErrNotFound):
		return "Not found."
	case errors.Is(err, backend.ErrInvalidInput):
		return err.Error()
	case errors.As(err, &authErr):
		return fmt.Sprintf("Authentication failed: %v", authErr.Err)
	case errors.As(err, &netErr):
		if netErr.Message != "" {
			return fmt.Sprintf("Request failed: %s", netErr.Message)
		}
		return fmt.Sprintf("Request failed: %v", netErr.Err)
	case errors.As(err, &backendErr):
		return fmt.Sprintf("The library service could not complete %s: %v", backendErr.Op, backendErr.Err)
	}
	return fmt.Sprintf("Error: %v", err)
}
