package lm75bd

import "errors"

var (
	ErrNoBus      = errors.New("lm75bd: no i2c bus")
	ErrOutOfRange = errors.New("lm75bd: threshold out of range")
)
