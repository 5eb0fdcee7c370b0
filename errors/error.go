package errors

import (
	"fmt"
	"testing"
)

// GenerateError Syntactic sugar to display errors
func GenerateError(t *testing.T, text string) {
	t.Helper()
	t.Errorf("An error occurred : %s", text)
}

// CanceledRequestContextError is the error to handle request cancellation
type CanceledRequestContextError struct{}

func (c *CanceledRequestContextError) Error() string {
	return "The user canceled the request"
}

// InstallError is returned when a manifest entry cannot be fetched or stored,
// the whole install attempt is then aborted
type InstallError struct {
	Version string
	URL     string
	Err     error
}

func (i *InstallError) Error() string {
	return fmt.Sprintf("Impossible to install the version %s, %s failed: %v", i.Version, i.URL, i.Err)
}

func (i *InstallError) Unwrap() error {
	return i.Err
}

// FetchStatusError is returned when the network answered with an unusable status
type FetchStatusError struct {
	URL        string
	StatusCode int
}

func (f *FetchStatusError) Error() string {
	return fmt.Sprintf("The request to %s returned the status %d", f.URL, f.StatusCode)
}

// RetiredError is returned by a partition manager that belongs to a redundant worker
type RetiredError struct {
	Partition string
}

func (r *RetiredError) Error() string {
	return fmt.Sprintf("The partition %s belongs to a retired worker", r.Partition)
}
