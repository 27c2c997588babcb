package storage

import "errors"

var ErrLockTimeout = errors.New("timed out waiting for document lock")
