package codec

import "errors"

var (
	ErrConfig       = errors.New("invalid token codec config")
	ErrInvalidToken = errors.New("invalid token")
)
