package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path"
	"strconv"
	"sync"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/gurupras/thermalmgr/interfaces"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type Webserver struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func New() *Webserver {
	return &Webserver{BasePath: "/"}
}

// UnmarshalYAML accepts the settings either at the top level or nested under
// a 'webserver' key.
func (w *Webserver) UnmarshalYAML(unmarshal func(i interface{}) error) error {
	m := make(map[string]interface{})
	if err := unmarshal(&m); err != nil {
		return err
	}
	if data, ok := m["webserver"]; ok {
		b, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		m = make(map[string]interface{})
		if err := yaml.Unmarshal(b, &m); err != nil {
			return err
		}
	} else {
		log.Debugf("No key 'webserver' found while unmarshalling Webserver")
	}

	if v, ok := m["port"]; ok {
		port, ok := v.(int)
		if !ok {
			return fmt.Errorf("Failed while parsing port: %v", v)
		}
		w.Port = port
	}
	w.BasePath = "/"
	if v, ok := m["base_path"]; ok {
		p, ok := v.(string)
		if !ok {
			return fmt.Errorf("Failed while parsing base_path: %v", v)
		}
		w.BasePath = p
	}
	return nil
}

// Start serves the API until Stop is called.
func (w *Webserver) Start(mgr interfaces.ThermalManagerInterface) error {
	handler, err := InitializeWebServer(w.BasePath, mgr)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(w.Port))
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
	}
	w.mu.Lock()
	w.listener = listener
	w.server = server
	w.mu.Unlock()

	log.Infof("Starting webserver on %v", listener.Addr())
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *Webserver) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

func (w *Webserver) Stop() {
	w.mu.Lock()
	server := w.server
	w.mu.Unlock()
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("webserver shutdown: %v", err)
	}
}

func GetTemperatureHandler(mgr interfaces.ThermalManagerInterface, w http.ResponseWriter, req *http.Request) error {
	temp, err := mgr.GetTemperature()
	if err != nil {
		return err
	}
	w.WriteHeader(200)
	w.Write([]byte(fmt.Sprintf("%v", temp)))
	return nil
}

func GetTemperatureLimits(mgr interfaces.ThermalManagerInterface, w http.ResponseWriter, req *http.Request) error {
	overTemp, hysteresis := mgr.GetLimits()
	return writeJSON(w, map[string]interface{}{
		"over_temperature": overTemp,
		"hysteresis":       hysteresis,
	})
}

func GetStateHandler(mgr interfaces.ThermalManagerInterface, w http.ResponseWriter, req *http.Request) error {
	m := map[string]interface{}{
		"state": mgr.GetState(),
	}
	if temp, err := mgr.GetTemperature(); err == nil {
		m["temperature"] = temp
	}
	return writeJSON(w, m)
}

func MeasureHandler(mgr interfaces.ThermalManagerInterface, w http.ResponseWriter, req *http.Request) error {
	if err := mgr.RequestMeasurement(); err != nil {
		return err
	}
	w.WriteHeader(http.StatusAccepted)
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StateStreamHandler pushes every ThermalState the manager publishes to the
// websocket client until it disconnects.
func StateStreamHandler(mgr interfaces.ThermalManagerInterface, w http.ResponseWriter, req *http.Request) error {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return nil // Upgrade already replied
	}
	defer conn.Close()

	name := fmt.Sprintf("ws-%v-%d", req.RemoteAddr, time.Now().UnixNano())
	ch := make(chan *interfaces.ThermalState, 16)
	mgr.RegisterChannel(ch, name)
	defer mgr.UnregisterChannel(name)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Debugf("websocket client %v connected", name)
	for {
		select {
		case <-closed:
			log.Debugf("websocket client %v disconnected", name)
			return nil
		case st := <-ch:
			b, err := json.Marshal(st)
			if err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Debugf("websocket client %v write failed: %v", name, err)
				return nil
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	w.Write(b)
	return nil
}

type handlerFunc func(interfaces.ThermalManagerInterface, http.ResponseWriter, *http.Request) error

func wrap(route string, mgr interfaces.ThermalManagerInterface, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := fn(mgr, w, req); err != nil {
			msg := fmt.Sprintf("Failed to handle '%v': %v", route, err)
			log.Error(msg)
			w.WriteHeader(503)
			w.Write([]byte(msg))
		}
	}
}

func InitializeWebServer(basePath string, mgr interfaces.ThermalManagerInterface) (http.Handler, error) {
	if mgr == nil {
		return nil, fmt.Errorf("webserver: no thermal manager")
	}
	if basePath == "" {
		basePath = "/"
	}
	basePath = path.Clean("/" + basePath)
	log.Infof("webserverBasePath=%v", basePath)

	r := mux.NewRouter()
	r.HandleFunc(path.Join(basePath, "get-temperature")+"/", wrap("/get-temperature", mgr, GetTemperatureHandler)).Methods("GET")
	r.HandleFunc(path.Join(basePath, "get-limits")+"/", wrap("/get-limits", mgr, GetTemperatureLimits)).Methods("GET")
	r.HandleFunc(path.Join(basePath, "get-state")+"/", wrap("/get-state", mgr, GetStateHandler)).Methods("GET")
	r.HandleFunc(path.Join(basePath, "measure")+"/", wrap("/measure", mgr, MeasureHandler)).Methods("POST")
	r.HandleFunc(path.Join(basePath, "ws"), wrap("/ws", mgr, StateStreamHandler))
	r.Handle(path.Join(basePath, "metrics"), promhttp.Handler())
	return r, nil
}
