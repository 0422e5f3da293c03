// Package monitoring serves the state of a running schedule over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/flushsched/driver"
	"github.com/sarchlab/flushsched/schedule"
	"github.com/sarchlab/flushsched/timing"
)

// Schedule is the part of a resolved configuration the monitor serves.
type Schedule interface {
	schedule.Querier

	Bin(level, bin int) (schedule.BinInfo, error)
	Level(level int) (schedule.LevelInfo, error)
	Parameters() schedule.Parameters
}

// Monitor turns a schedule run into a server and allows external monitoring
// and controlling of the run.
type Monitor struct {
	engine     timing.Engine
	schedule   Schedule
	navigator  *driver.Navigator
	gatherer   prometheus.Gatherer
	portNumber int

	profileDuration time.Duration

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		gatherer:        prometheus.DefaultGatherer,
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 && portNumber != 0 {
		zap.L().Warn("port not allowed for the monitoring server, "+
			"using a random port instead",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithGatherer sets where the /metrics endpoint reads metrics from.
func (m *Monitor) WithGatherer(g prometheus.Gatherer) *Monitor {
	m.gatherer = g
	return m
}

// RegisterEngine registers the engine that drives the run.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterSchedule registers the schedule to query.
func (m *Monitor) RegisterSchedule(s Schedule) {
	m.schedule = s
}

// RegisterNavigator registers the step cursor used when a query names no
// step.
func (m *Monitor) RegisterNavigator(n *driver.Navigator) {
	m.navigator = n
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

// CompleteProgressBar removes a bar from the list of shown bars.
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

// Router returns the handler serving all the endpoints.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/config", m.config)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/frame", m.frame)
	r.HandleFunc("/api/bin/{level}/{bin}", m.bin)
	r.HandleFunc("/api/level/{level}", m.level)
	r.HandleFunc("/api/cursor", m.cursor)
	r.HandleFunc("/api/cursor/{move:next|prev}", m.moveCursor)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))

	return r
}

// Listen opens the listener of the server.
func (m *Monitor) Listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}

	zap.L().Info("monitoring schedule",
		zap.String("url", URL(listener)))

	return listener, nil
}

// URL returns the address at which a listener is reachable locally.
func URL(listener net.Listener) string {
	return fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
}

// Serve serves requests until the context is canceled, and then shuts the
// server down.
func (m *Monitor) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("monitoring: shutdown: %w", err)
	}

	err = <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func (m *Monitor) config(w http.ResponseWriter, _ *http.Request) {
	if m.schedule == nil {
		http.Error(w, "no schedule registered", http.StatusServiceUnavailable)
		return
	}

	params := m.schedule.Parameters()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&params)
	serializer.SetMaxDepth(1)

	w.Header().Set("Content-Type", "application/json")

	err := serializer.Serialize(w)
	logOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]uint64{"now": m.engine.Now()})
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
		return
	}

	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
		return
	}

	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

// errBadQuery marks a malformed request parameter.
var errBadQuery = errors.New("bad query")

func (m *Monitor) defaultStep() uint64 {
	switch {
	case m.navigator != nil:
		return m.navigator.Current()
	case m.engine != nil:
		return m.engine.Now()
	default:
		return 0
	}
}

func (m *Monitor) parseStepParams(r *http.Request) (uint64, bool, error) {
	step := m.defaultStep()
	partial := false

	q := r.URL.Query()

	if s := q.Get("step"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w: step %q", errBadQuery, s)
		}

		step = v
	}

	if s := q.Get("partial"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return 0, false, fmt.Errorf("%w: partial %q", errBadQuery, s)
		}

		partial = v
	}

	return step, partial, nil
}

func parseIndex(r *http.Request, name string) (int, error) {
	s := mux.Vars(r)[name]

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", errBadQuery, name, s)
	}

	return v, nil
}

func (m *Monitor) frame(w http.ResponseWriter, r *http.Request) {
	if m.schedule == nil {
		http.Error(w, "no schedule registered", http.StatusServiceUnavailable)
		return
	}

	step, partial, err := m.parseStepParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	frame, err := m.schedule.Frame(step, partial)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, frame)
}

type binRsp struct {
	Info  schedule.BinInfo  `json:"info"`
	Step  uint64            `json:"step"`
	State schedule.BinState `json:"state"`
}

func (m *Monitor) bin(w http.ResponseWriter, r *http.Request) {
	if m.schedule == nil {
		http.Error(w, "no schedule registered", http.StatusServiceUnavailable)
		return
	}

	level, err := parseIndex(r, "level")
	if err != nil {
		writeError(w, err)
		return
	}

	bin, err := parseIndex(r, "bin")
	if err != nil {
		writeError(w, err)
		return
	}

	step, partial, err := m.parseStepParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := m.schedule.Bin(level, bin)
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := m.schedule.Status(level, bin, step, partial)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, binRsp{Info: info, Step: step, State: state})
}

func (m *Monitor) level(w http.ResponseWriter, r *http.Request) {
	if m.schedule == nil {
		http.Error(w, "no schedule registered", http.StatusServiceUnavailable)
		return
	}

	level, err := parseIndex(r, "level")
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := m.schedule.Level(level)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, info)
}

func (m *Monitor) cursor(w http.ResponseWriter, r *http.Request) {
	if m.navigator == nil {
		http.Error(w, "no navigator registered", http.StatusServiceUnavailable)
		return
	}

	if s := r.URL.Query().Get("step"); s != "" {
		step, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: step %q", errBadQuery, s))
			return
		}

		m.navigator.Jump(step)
	}

	writeJSON(w, map[string]uint64{"step": m.navigator.Current()})
}

func (m *Monitor) moveCursor(w http.ResponseWriter, r *http.Request) {
	if m.navigator == nil {
		http.Error(w, "no navigator registered", http.StatusServiceUnavailable)
		return
	}

	var step uint64
	if mux.Vars(r)["move"] == "next" {
		step = m.navigator.Next()
	} else {
		step = m.navigator.Prev()
	}

	writeJSON(w, map[string]uint64{"step": step})
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		writeError(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		writeError(w, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		writeError(w, err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, prof)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadQuery),
		errors.Is(err, schedule.ErrOutOfRange),
		errors.Is(err, schedule.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, schedule.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		zap.L().Error("monitoring request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	logOnErr(json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}))
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	logOnErr(err)
}

func logOnErr(err error) {
	if err != nil {
		zap.L().Warn("monitoring response not written", zap.Error(err))
	}
}
