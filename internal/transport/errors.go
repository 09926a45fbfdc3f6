package transport

import "fmt"

var (
	// ErrConnClosed is returned for writes on a closed connection
	ErrConnClosed = fmt.Errorf("connection closed")
)
