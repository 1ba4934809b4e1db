// Package utils provides common utility functions for input validation.
//
// This package contains utilities for validating feed endpoint URLs before a
// connection is attempted, so configuration mistakes fail fast with a clear
// message instead of surfacing as dial errors.
package utils

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Error definitions for validation functions
var (
	ErrEmptyEndpoint     = errors.New("endpoint URL cannot be empty")
	ErrUnsupportedScheme = errors.New("unsupported endpoint scheme")
)

// schemeSet contains the URL schemes a feed endpoint may use.
// This map is used for O(1) lookup performance when validating endpoints.
var schemeSet = map[string]bool{
	"ws":  true, // plain WebSocket
	"wss": true, // WebSocket over TLS
}

// supportedSchemesCache is a pre-computed string of supported schemes
// to avoid rebuilding this string on every validation error.
var supportedSchemesCache = getSupportedSchemes(schemeSet)

// ValidateEndpoint validates that a feed endpoint is a well-formed WebSocket
// URL.
//
// The endpoint must parse as a URL, use the ws or wss scheme, and name a
// host. The scheme check is case-insensitive.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return ErrEmptyEndpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL %q: %w", endpoint, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if !schemeSet[scheme] {
		return fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedScheme, u.Scheme, supportedSchemesCache)
	}

	if u.Host == "" {
		return fmt.Errorf("invalid endpoint URL %q: missing host", endpoint)
	}

	return nil
}

// getSupportedSchemes builds a comma-separated string of supported schemes
// from the provided scheme set. This function is used to generate
// user-friendly error messages.
//
// Note: The order of schemes in the returned string is not guaranteed due to
// Go's map iteration order being unspecified.
func getSupportedSchemes(schemeSet map[string]bool) string {
	keys := make([]string, 0, len(schemeSet))
	for k := range schemeSet {
		keys = append(keys, k)
	}
	return strings.Join(keys, ", ")
}
