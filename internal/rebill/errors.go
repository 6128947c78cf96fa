package rebill

import "errors"

var ErrInvalidConfig = errors.New("rebill scheduler: missing required dependency")
