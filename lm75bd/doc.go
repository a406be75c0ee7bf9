// Package lm75bd drives an NXP LM75BD digital temperature sensor and
// thermal watchdog over I2C.
//
// Range: -55°C - 125°C
//
// Resolution: 0.125°C (temperature), 0.5°C (Tos / Thyst)
//
// The OS output is used as an over-temperature alert. In interrupt mode
// it latches until any register is read, which is how the host
// acknowledges it.
package lm75bd
