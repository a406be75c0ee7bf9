package thermalmgr

import (
	"os"
	"testing"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/stretchr/testify/require"
)

// Tests that drive real GPIO pins only run on a board with a relay attached.
func requireRelayHardware(t *testing.T) {
	if os.Getenv("THERMALMGR_RELAY_HW") == "" {
		t.Skip("THERMALMGR_RELAY_HW not set")
	}
}

func getRelay(require *require.Assertions) *Relay {
	relay, err := NewRelay(false, []int{23, 22})
	require.Nil(err)
	require.NotNil(relay)
	return relay
}

func TestParseRelayYaml(t *testing.T) {
	require := require.New(t)

	str := `
active_high: true
pins: [14, 17, 18]
`

	relay := &FakeRelay{}
	err := yaml.Unmarshal([]byte(str), relay)
	require.Nil(err)
	require.True(relay.ActiveHigh())
	require.Equal(3, len(relay.SwitchMap))
	require.Equal(uint8(14), relay.SwitchMap[1])
	require.Equal(uint8(17), relay.SwitchMap[2])
	require.Equal(uint8(18), relay.SwitchMap[3])
}

func TestParseRelayYamlErrors(t *testing.T) {
	require := require.New(t)

	relay := &FakeRelay{}
	require.NotNil(yaml.Unmarshal([]byte("active_high: true\n"), relay))
	require.NotNil(yaml.Unmarshal([]byte("active_high: maybe\npins: [1]\n"), relay))
	require.NotNil(yaml.Unmarshal([]byte("pins: [one]\n"), relay))

	// active_high defaults to false
	require.Nil(yaml.Unmarshal([]byte("pins: [4]\n"), relay))
	require.False(relay.ActiveHigh())
}

func TestFakeRelaySwitching(t *testing.T) {
	require := require.New(t)

	relay := NewFakeRelay(false, []int{23, 22})
	on, err := relay.IsOn(1)
	require.Nil(err)
	require.False(on)

	require.Nil(relay.On(1))
	on, _ = relay.IsOn(1)
	require.True(on)

	require.Nil(relay.Toggle(1))
	on, _ = relay.IsOn(1)
	require.False(on)

	require.Nil(relay.Toggle(2))
	on, _ = relay.IsOn(2)
	require.True(on)

	require.NotNil(relay.On(3))
	_, err = relay.IsOn(0)
	require.NotNil(err)
}

func TestParseElementYaml(t *testing.T) {
	require := require.New(t)

	str := `
relay:
  active_high: true
  pins: [5]
toggle_delay_sec: 30
`
	relay := &FakeRelay{}
	element := NewElement(relay, 0)
	err := yaml.Unmarshal([]byte(str), element)
	require.Nil(err)
	require.Equal(30*time.Second, element.ToggleDelay)
	require.True(relay.ActiveHigh())
	require.Equal(uint8(5), relay.SwitchMap[1])

	err = yaml.Unmarshal([]byte("relay:\n  pins: [5]\ntoggle_delay_sec: soon\n"), NewElement(&FakeRelay{}, 0))
	require.NotNil(err)
}

func TestElementToggleDelay(t *testing.T) {
	require := require.New(t)

	relay := NewFakeRelay(false, []int{5})
	element := NewElement(relay, 50*time.Millisecond)

	// The first activation is never delayed.
	require.Nil(element.On())
	on, err := element.IsOn()
	require.Nil(err)
	require.True(on)

	require.Nil(element.Off())
	err = element.On()
	require.IsType(ElementToggleDelayError{}, err)
	on, _ = element.IsOn()
	require.False(on)

	time.Sleep(60 * time.Millisecond)
	require.Nil(element.On())
	on, _ = element.IsOn()
	require.True(on)
}

func TestRelay(t *testing.T) {
	requireRelayHardware(t)
	require := require.New(t)
	getRelay(require)
	// Add a small delay here to ensure that multiple tests don't toggle relay too quickly
	time.Sleep(300 * time.Millisecond)
}

func TestRelayToggle(t *testing.T) {
	requireRelayHardware(t)
	require := require.New(t)

	relay := getRelay(require)

	// Test switch 1
	err := relay.Toggle(1)
	require.Nil(err)
	time.Sleep(500 * time.Millisecond)
	err = relay.Toggle(1)
	require.Nil(err)
	time.Sleep(500 * time.Millisecond)

	// Test switch 2
	err = relay.Toggle(2)
	require.Nil(err)
	time.Sleep(500 * time.Millisecond)
	err = relay.Toggle(2)
	require.Nil(err)
}

func TestRelayOnOff(t *testing.T) {
	requireRelayHardware(t)
	require := require.New(t)

	relay := getRelay(require)

	// Test switch 1
	err := relay.On(1)
	require.Nil(err)
	time.Sleep(500 * time.Millisecond)
	err = relay.Off(1)
	require.Nil(err)
	time.Sleep(500 * time.Millisecond)

	// Test switch 2
	err = relay.On(2)
	require.Nil(err)
	time.Sleep(500 * time.Millisecond)
	err = relay.Off(2)
	require.Nil(err)
}
