package backup

import (
	"errors"

	"davbackup/internal/encryptor"
)

// Terminal failures of a task. Failing to delete the local artifact after a
// verified upload is logged and is not among them.
var (
	ErrArchiveEncrypt = encryptor.ErrArchiveEncrypt
	ErrUpload         = errors.New("upload failed")
	ErrVerify         = errors.New("verification failed")
)
