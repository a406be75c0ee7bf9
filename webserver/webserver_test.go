package webserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/gorilla/websocket"
	"github.com/gurupras/thermalmgr/interfaces"
	"github.com/parnurzeal/gorequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLUnmarshal(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	conf := `
webserver:
  port: 8080
  base_path: /thermal
`
	w := New()
	err := yaml.Unmarshal([]byte(conf), w)
	require.Nil(err)

	assert.Equal(8080, w.Port)
	assert.Equal("/thermal", w.BasePath)

	conf = `
port: 8080
`
	w = New()
	err = yaml.Unmarshal([]byte(conf), w)
	require.Nil(err)

	assert.Equal(8080, w.Port)
	assert.Equal("/", w.BasePath)

	// Now test with some extra stuff
	conf = `
random:
  a: 1
  b: 2
webserver:
  port: 8081
`
	w = New()
	err = yaml.Unmarshal([]byte(conf), w)
	require.Nil(err)
	assert.Equal(8081, w.Port)

	w = New()
	err = yaml.Unmarshal([]byte("port: eighty\n"), w)
	require.NotNil(err)
}

type DummyThermalManager struct {
	mu        sync.Mutex
	temp      float64
	tempErr   error
	state     interfaces.State
	measured  int
	measErr   error
	listeners map[string]chan *interfaces.ThermalState
}

func NewDummyThermalManager() *DummyThermalManager {
	return &DummyThermalManager{
		temp:      41.5,
		state:     interfaces.NOMINAL,
		listeners: make(map[string]chan *interfaces.ThermalState),
	}
}

func (d *DummyThermalManager) GetTemperature() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.temp, d.tempErr
}

func (d *DummyThermalManager) GetLimits() (float64, float64) {
	return 80.0, 75.0
}

func (d *DummyThermalManager) GetState() interfaces.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *DummyThermalManager) RequestMeasurement() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.measured++
	return d.measErr
}

func (d *DummyThermalManager) RegisterChannel(ch chan *interfaces.ThermalState, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[name] = ch
}

func (d *DummyThermalManager) UnregisterChannel(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, name)
}

func (d *DummyThermalManager) measurements() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.measured
}

func (d *DummyThermalManager) failMeasurements(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.measErr = err
}

func (d *DummyThermalManager) numListeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

func (d *DummyThermalManager) broadcast(st *interfaces.ThermalState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.listeners {
		ch <- st
	}
}

func startServer(t *testing.T, basePath string, mgr interfaces.ThermalManagerInterface) *httptest.Server {
	handler, err := InitializeWebServer(basePath, mgr)
	require.Nil(t, err)
	require.NotNil(t, handler)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestInitializeWebServerRequiresManager(t *testing.T) {
	_, err := InitializeWebServer("/", nil)
	require.NotNil(t, err)
}

func TestGetEndpoints(t *testing.T) {
	require := require.New(t)

	mgr := NewDummyThermalManager()
	server := startServer(t, "/", mgr)

	resp, body, errs := gorequest.New().Get(server.URL + "/get-temperature/").End()
	require.Empty(errs)
	require.Equal(200, resp.StatusCode)
	require.Equal("41.5", body)

	resp, body, errs = gorequest.New().Get(server.URL + "/get-limits/").End()
	require.Empty(errs)
	require.Equal(200, resp.StatusCode)
	m := make(map[string]interface{})
	require.Nil(json.Unmarshal([]byte(body), &m))
	require.Equal(80.0, m["over_temperature"])
	require.Equal(75.0, m["hysteresis"])

	resp, body, errs = gorequest.New().Get(server.URL + "/get-state/").End()
	require.Empty(errs)
	require.Equal(200, resp.StatusCode)
	m = make(map[string]interface{})
	require.Nil(json.Unmarshal([]byte(body), &m))
	require.Equal("nominal", m["state"])
	require.Equal(41.5, m["temperature"])

	resp, _, errs = gorequest.New().Get(server.URL + "/metrics").End()
	require.Empty(errs)
	require.Equal(200, resp.StatusCode)
}

func TestGetTemperatureError(t *testing.T) {
	require := require.New(t)

	mgr := NewDummyThermalManager()
	mgr.tempErr = errors.New("no reading yet")
	server := startServer(t, "/", mgr)

	resp, body, errs := gorequest.New().Get(server.URL + "/get-temperature/").End()
	require.Empty(errs)
	require.Equal(503, resp.StatusCode)
	require.Contains(body, "no reading yet")

	// get-state still answers, without a temperature.
	resp, body, errs = gorequest.New().Get(server.URL + "/get-state/").End()
	require.Empty(errs)
	require.Equal(200, resp.StatusCode)
	require.NotContains(body, "temperature")
}

func TestMeasure(t *testing.T) {
	require := require.New(t)

	mgr := NewDummyThermalManager()
	server := startServer(t, "/", mgr)

	resp, _, errs := gorequest.New().Post(server.URL + "/measure/").End()
	require.Empty(errs)
	require.Equal(http.StatusAccepted, resp.StatusCode)
	require.Equal(1, mgr.measurements())

	resp, _, errs = gorequest.New().Get(server.URL + "/measure/").End()
	require.Empty(errs)
	require.Equal(http.StatusMethodNotAllowed, resp.StatusCode)

	mgr.failMeasurements(errors.New("queue full"))
	resp, body, errs := gorequest.New().Post(server.URL + "/measure/").End()
	require.Empty(errs)
	require.Equal(503, resp.StatusCode)
	require.Contains(body, "queue full")
}

// Test whether we are able to handle webserver under paths other than "/"
func TestSubWebServer(t *testing.T) {
	require := require.New(t)

	server := startServer(t, "webserver", NewDummyThermalManager())

	resp, body, errs := gorequest.New().Get(server.URL + "/webserver/get-temperature/").End()
	require.Empty(errs)
	require.Equal(200, resp.StatusCode)
	require.Equal("41.5", body)

	resp, _, errs = gorequest.New().Get(server.URL + "/get-temperature/").End()
	require.Empty(errs)
	require.Equal(404, resp.StatusCode)
}

func TestWebsockets(t *testing.T) {
	require := require.New(t)

	mgr := NewDummyThermalManager()
	server := startServer(t, "/", mgr)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.Nil(err)
	require.NotNil(c)

	require.Eventually(func() bool { return mgr.numListeners() == 1 }, 2*time.Second, 5*time.Millisecond)
	mgr.broadcast(&interfaces.ThermalState{
		Temperature: 85.0,
		Timestamp:   1,
		State:       interfaces.OVER_TEMPERATURE,
		Event:       "over_temperature",
	})

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := c.ReadMessage()
	require.Nil(err)
	st := interfaces.ThermalState{}
	require.Nil(json.Unmarshal(b, &st))
	require.Equal(85.0, st.Temperature)
	require.Equal(interfaces.OVER_TEMPERATURE, st.State)

	c.Close()
	require.Eventually(func() bool { return mgr.numListeners() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebserverStartStop(t *testing.T) {
	require := require.New(t)

	w := New()
	done := make(chan error)
	go func() { done <- w.Start(NewDummyThermalManager()) }()

	require.Eventually(func() bool { return w.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	url := fmt.Sprintf("http://127.0.0.1:%d/get-temperature/", w.Addr().(*net.TCPAddr).Port)
	resp, body, errs := gorequest.New().Get(url).End()
	require.Empty(errs)
	require.Equal(200, resp.StatusCode)
	require.Equal("41.5", body)

	w.Stop()
	require.Nil(<-done)
}
