package shared

import "errors"

// ErrUnknownModel is returned for a model name no collection is defined for.
var ErrUnknownModel = errors.New("unknown model")
