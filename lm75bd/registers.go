package lm75bd

// register pointers
const (
	regTemp  = 0x00
	regConf  = 0x01
	regThyst = 0x02
	regTos   = 0x03
)

// configuration register bits
const (
	confShutdown  = 1 << 0
	confOSIntMode = 1 << 1
	confOSPolHigh = 1 << 2
	confFaultQMsk = 0x3 << 3
	confFaultQPos = 3
)

const (
	DefaultAddress = 0x48

	MinTemperature = -55.0
	MaxTemperature = 125.0

	tempResolution      = 0.125
	thresholdResolution = 0.5
)
