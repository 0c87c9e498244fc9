package run

import "errors"

var (
	ErrBusy        = errors.New("a backup run is already in progress")
	ErrRunNotFound = errors.New("run not found")
)
