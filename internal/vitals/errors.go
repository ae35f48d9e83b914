package vitals

import "errors"

var ErrInvalidSignalConfig = errors.New("invalid signal configuration")
