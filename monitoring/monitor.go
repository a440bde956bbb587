// Package monitoring serves a small web interface and JSON API for a running
// simulation. Reads come from the published state buffer and control
// requests are queued for the next step, so the server never touches the
// simulation goroutine directly.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/gsclock/monitoring/web"
	"github.com/sarchlab/gsclock/sim/clock"
)

// ClockSource provides the last published clock state.
type ClockSource interface {
	ClockSnapshot() (clock.Snapshot, error)
}

// Controller accepts control requests that take effect at the next step.
type Controller interface {
	RequestPause()
	RequestResume()
	RequestTogglePause()
	RequestSpeed(speed int) error
}

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	source     ClockSource
	controller Controller
	logger     *slog.Logger

	portNumber  int
	openBrowser bool
	server      *http.Server

	inspectLock  sync.Mutex
	inspectables map[string]func() any

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		logger:       slog.Default(),
		inspectables: make(map[string]func() any),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.logger.Warn("monitor port not allowed, using a random port",
			"port", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithOpenBrowser makes StartServer open the monitor in a browser.
func (m *Monitor) WithOpenBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger *slog.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterClock sets where the clock state is read from.
func (m *Monitor) RegisterClock(s ClockSource) {
	m.source = s
}

// RegisterController sets where control requests are sent.
func (m *Monitor) RegisterController(c Controller) {
	m.controller = c
}

// RegisterInspectable exposes the value returned by fn under name. The
// function must be safe to call from the server goroutine.
func (m *Monitor) RegisterInspectable(name string, fn func() any) {
	m.inspectLock.Lock()
	defer m.inspectLock.Unlock()

	m.inspectables[name] = fn
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router with every API route and the static pages.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/pause", m.pause).Methods(http.MethodPost)
	r.HandleFunc("/api/continue", m.resume).Methods(http.MethodPost)
	r.HandleFunc("/api/toggle", m.toggle).Methods(http.MethodPost)
	r.HandleFunc("/api/speed/{value}", m.speed).Methods(http.MethodPost)
	r.HandleFunc("/api/list_inspectables", m.listInspectables)
	r.HandleFunc("/api/inspect/{name}", m.inspect)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor server stopped", "err", err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.Warn("cannot open browser", "url", url, "err", err)
		}
	}

	return url, nil
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type nowRsp struct {
	Tick   uint64 `json:"tick"`
	Time   string `json:"time"`
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Day    int    `json:"day"`
	Hour   int    `json:"hour"`
	Speed  uint32 `json:"speed"`
	Paused bool   `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if m.source == nil {
		http.Error(w, "no clock registered", http.StatusServiceUnavailable)
		return
	}

	s, err := m.source.ClockSnapshot()
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, nowRsp{
		Tick:   s.Tick,
		Time:   s.Time().String(),
		Year:   s.Year,
		Month:  s.Month,
		Day:    s.Day,
		Hour:   s.Hour,
		Speed:  s.Speed,
		Paused: s.Paused,
	})
}

func (m *Monitor) withController(
	w http.ResponseWriter,
	fn func(c Controller) error,
) {
	if m.controller == nil {
		http.Error(w, "no controller registered", http.StatusServiceUnavailable)
		return
	}

	if err := fn(m.controller); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.withController(w, func(c Controller) error {
		c.RequestPause()
		return nil
	})
}

func (m *Monitor) resume(w http.ResponseWriter, _ *http.Request) {
	m.withController(w, func(c Controller) error {
		c.RequestResume()
		return nil
	})
}

func (m *Monitor) toggle(w http.ResponseWriter, _ *http.Request) {
	m.withController(w, func(c Controller) error {
		c.RequestTogglePause()
		return nil
	})
}

func (m *Monitor) speed(w http.ResponseWriter, r *http.Request) {
	value, err := strconv.Atoi(mux.Vars(r)["value"])
	if err != nil {
		http.Error(w, "speed must be an integer", http.StatusBadRequest)
		return
	}

	m.withController(w, func(c Controller) error {
		return c.RequestSpeed(value)
	})
}

func (m *Monitor) listInspectables(w http.ResponseWriter, _ *http.Request) {
	m.inspectLock.Lock()
	names := make([]string, 0, len(m.inspectables))
	for n := range m.inspectables {
		names = append(names, n)
	}
	m.inspectLock.Unlock()

	sort.Strings(names)

	m.writeJSON(w, names)
}

func (m *Monitor) inspect(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.inspectLock.Lock()
	fn, ok := m.inspectables[name]
	m.inspectLock.Unlock()

	if !ok {
		http.Error(w, "inspectable not found", http.StatusNotFound)
		return
	}

	depth := 1
	if d := r.URL.Query().Get("depth"); d != "" {
		var err error

		depth, err = strconv.Atoi(d)
		if err != nil || depth < 0 {
			http.Error(w, "depth must be a non-negative integer",
				http.StatusBadRequest)
			return
		}
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(fn())
	serializer.SetMaxDepth(depth)

	if field := r.URL.Query().Get("field"); field != "" {
		if err := serializer.SetEntryPoint(strings.Split(field, ".")); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var buf bytes.Buffer
	if err := serializer.Serialize(&buf); err != nil {
		m.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]ProgressBarStatus, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Status())
	}

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.internalError(w, err)
		return
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		m.internalError(w, err)
		return
	}

	memInfo, err := p.MemoryInfo()
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.internalError(w, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (m *Monitor) internalError(w http.ResponseWriter, err error) {
	m.logger.Error("monitor request failed", "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
