package thermalmgr

type Condition int

const (
	ConditionDeadBand Condition = iota
	ConditionOverTemperature
	ConditionSafe
)

func (c Condition) String() string {
	switch c {
	case ConditionOverTemperature:
		return "over_temperature"
	case ConditionSafe:
		return "safe"
	default:
		return "dead_band"
	}
}

// Classify places temp against the two thresholds. Readings in
// [Hysteresis, OverTemperature] fall in the dead band and produce no
// notification.
func Classify(temp float64, config ThermalConfig) Condition {
	if temp > config.OverTemperature {
		return ConditionOverTemperature
	} else if temp < config.Hysteresis {
		return ConditionSafe
	}
	return ConditionDeadBand
}
