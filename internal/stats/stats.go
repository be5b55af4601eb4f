package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

const (
	NumActiveClients   = "NumActiveClients"
	NumActiveRooms     = "NumActiveRooms"
	NumGroupMessages   = "NumGroupMessages"
	NumPrivateMessages = "NumPrivateMessages"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
}

type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
	done       chan struct{}
	stopOnce   sync.Once
}

type metricsUpdateReq struct {
	name  string
	value int
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

// NewStatsUpdater creates a new stats updater and serves its values on
// GET /debug/vars.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		updateChan: make(chan *metricsUpdateReq, 512),
		done:       make(chan struct{}),
		vars:       new(expvar.Map).Init(),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	su.initializeMetrics()

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	su.vars.Set("ProcessRSSBytes", expvar.Func(func() any {
		mem, err := proc.MemoryInfo()
		if err != nil {
			return 0
		}
		return mem.RSS
	}))
	su.vars.Set("ProcessThreads", expvar.Func(func() any {
		n, err := proc.NumThreads()
		if err != nil {
			return 0
		}
		return n
	}))
}

func (su *StatsUpdater) updateMetrics() {
	for {
		select {
		case req := <-su.updateChan:
			metric := su.vars.Get(req.name)
			if metric == nil {
				panic("metric not found: " + req.name)
			}

			metric.(*expvar.Int).Add(int64(req.value))
		case <-su.done:
			return
		}
	}
}

// update queues req unless the updater has been stopped, in which case
// the update is dropped.
func (su *StatsUpdater) update(req *metricsUpdateReq) {
	select {
	case <-su.done:
		return
	default:
	}

	select {
	case su.updateChan <- req:
	case <-su.done:
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.update(&metricsUpdateReq{name: name, value: 1})
}

func (su *StatsUpdater) Decr(name string) {
	su.update(&metricsUpdateReq{name: name, value: -1})
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

// Stop ends the update loop. Later Incr and Decr calls are no-ops.
func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() {
		close(su.done)
	})
}
