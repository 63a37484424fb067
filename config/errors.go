package config

import "github.com/go-errors/errors"

func errConfig(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}
