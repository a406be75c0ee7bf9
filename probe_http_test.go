package thermalmgr

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestUnmarshalYamlProbeHTTP(t *testing.T) {
	require := require.New(t)
	str := `
url: "http://thermal-probe/temp"
name: bench
`
	probe := HTTPProbe{}
	err := yaml.Unmarshal([]byte(str), &probe)
	require.Nil(err)
	require.Equal("http://thermal-probe/temp", probe.Url)
	require.Equal("bench", probe.GetName())
}

func TestProbeHTTPRequiresUrl(t *testing.T) {
	require := require.New(t)
	probe := HTTPProbe{}
	require.ErrorIs(probe.Initialize(), ErrInvalidArg)
}

func TestProbeHTTP(t *testing.T) {
	require := require.New(t)

	testTemp := 42.25
	var address atomic.Value
	// Set up a fake endpoint that returns temperature
	tempHandler := func(w http.ResponseWriter, req *http.Request) {
		address.Store(req.URL.Query().Get("address"))
		w.Write([]byte(fmt.Sprintf("%.2f\n", testTemp)))
	}
	r := mux.NewRouter()
	r.HandleFunc("/temp", tempHandler)
	server := httptest.NewServer(r)
	defer server.Close()

	probe := HTTPProbe{Url: server.URL + "/temp"}
	require.Nil(probe.Initialize())
	temp, err := probe.ReadTemperature(0x48)
	require.Nil(err)
	require.Equal(testTemp, temp)
	require.Equal("0x48", address.Load())
}

func TestProbeHTTPRetries(t *testing.T) {
	require := require.New(t)

	var calls atomic.Int32
	r := mux.NewRouter()
	r.HandleFunc("/temp", func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("30.5"))
	})
	server := httptest.NewServer(r)
	defer server.Close()

	probe := HTTPProbe{Url: server.URL + "/temp"}
	require.Nil(probe.Initialize())
	temp, err := probe.ReadTemperature(0x48)
	require.Nil(err)
	require.Equal(30.5, temp)
	require.Equal(int32(3), calls.Load())
}

func TestProbeHTTPGarbage(t *testing.T) {
	require := require.New(t)

	var calls atomic.Int32
	r := mux.NewRouter()
	r.HandleFunc("/temp", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.Write([]byte("warm"))
	})
	server := httptest.NewServer(r)
	defer server.Close()

	probe := HTTPProbe{Url: server.URL + "/temp"}
	require.Nil(probe.Initialize())
	_, err := probe.ReadTemperature(0x48)
	require.NotNil(err)
	require.Equal(int32(httpProbeAttempts), calls.Load())
}

func TestProbeWebsocket(t *testing.T) {
	require := require.New(t)

	upgrader := websocket.Upgrader{}
	r := mux.NewRouter()
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		c, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for _, msg := range []string{"not-a-number", "21.5", "22.0"} {
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		c.ReadMessage()
	})
	server := httptest.NewServer(r)
	defer server.Close()

	probe := &WSProbe{Url: "ws" + strings.TrimPrefix(server.URL, "http") + "/ws", Name: "ws"}
	_, err := probe.ReadTemperature(0x48)
	require.NotNil(err)

	require.Nil(probe.Initialize())
	defer probe.Close()

	temp, err := probe.ReadTemperature(0x48)
	require.Nil(err)
	require.Equal(21.5, temp)
	temp, err = probe.ReadTemperature(0x48)
	require.Nil(err)
	require.Equal(22.0, temp)
}
