package repo

import "errors"

var ErrNotFound = errors.New("not found")
