package client

import "fmt"

// NetworkError reports a failed forecast request. StatusCode is zero for
// transport failures and open circuit breakers.
type NetworkError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// MalformedPayloadError means a payload lacks the minimal structure needed
// to derive any weather facts.
type MalformedPayloadError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s response: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s response: %s", e.Provider, e.Reason)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}
