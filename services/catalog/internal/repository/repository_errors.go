package repository

import "errors"

var ErrProductNotFound = errors.New("product not found")
var ErrProductExists = errors.New("product already exists")
