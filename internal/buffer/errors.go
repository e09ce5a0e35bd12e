package buffer

import "errors"

// ErrClosed is returned by PopContext once the queue is closed and empty.
var ErrClosed = errors.New("queue closed")
