package daikin

import "fmt"

// APIError is a failed call to the cloud API, either at transport level
// (Err set, StatusCode zero) or an HTTP status of 300 and above.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("daikin api %s: %v", e.Endpoint, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("daikin api %s %d: %v", e.Endpoint, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("daikin api error %s %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}
