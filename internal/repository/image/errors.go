package image

import "errors"

var (
	ErrImageNotFound   = errors.New("image not found")
	ErrVariantNotFound = errors.New("variant not found")
)
