package roi

import "errors"

var (
	ErrNoPixels         = errors.New("roi: frame carries neither pixels nor channel means")
	ErrUndecodableImage = errors.New("roi: cannot decode face image")
	ErrEmptyImage       = errors.New("roi: face image has no pixels")
)
