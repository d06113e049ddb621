package spdx

import "errors"

// ErrParse marks a document or license expression the parser could not
// make sense of. Handlers treat it as terminal rather than retrying.
var ErrParse = errors.New("malformed spdx input")
