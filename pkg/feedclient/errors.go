package feedclient

import (
	"errors"
	"fmt"
)

// CodeMediaNotReady is returned with HTTP 409 while uploaded media is still
// being processed.
const CodeMediaNotReady = "MEDIA_NOT_READY"

// APIError is a non-2xx response. Code is the machine-readable field of the
// error body and is empty when the body carried none.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("feed api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("feed api: status %d (%s): %s", e.Status, e.Code, e.Message)
}

// HasCode reports whether err is an *APIError carrying code.
func HasCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

func IsMediaNotReady(err error) bool {
	return HasCode(err, CodeMediaNotReady)
}
