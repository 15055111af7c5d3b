package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SystemMetrics интерфейс для метрик процесса
type SystemMetrics interface {
	Record()
	StartRecording(interval time.Duration)
	Stop()
}

type systemMetrics struct {
	log         *logger.Logger
	goroutines  prometheus.Gauge
	memoryAlloc prometheus.Gauge
	memorySys   prometheus.Gauge
	gcCycles    prometheus.Counter

	mu        sync.Mutex
	lastNumGC uint32
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// NewSystemMetrics создает метрики процесса биллинга
func NewSystemMetrics(registry *prometheus.Registry, log *logger.Logger) SystemMetrics {
	factory := promauto.With(registry)

	return &systemMetrics{
		log: log,
		goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Name: "billing_process_goroutines",
			Help: "Current number of goroutines",
		}),
		memoryAlloc: factory.NewGauge(prometheus.GaugeOpts{
			Name: "billing_process_memory_alloc_bytes",
			Help: "Currently allocated heap memory in bytes",
		}),
		memorySys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "billing_process_memory_system_bytes",
			Help: "Total memory obtained from the OS in bytes",
		}),
		gcCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_process_gc_cycles_total",
			Help: "Completed garbage collection cycles",
		}),
		stopCh: make(chan struct{}),
	}
}

// Record снимает текущие значения
func (m *systemMetrics) Record() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryAlloc.Set(float64(ms.Alloc))
	m.memorySys.Set(float64(ms.Sys))

	// счетчик растет на число циклов с прошлого замера
	m.mu.Lock()
	if ms.NumGC > m.lastNumGC {
		m.gcCycles.Add(float64(ms.NumGC - m.lastNumGC))
		m.lastNumGC = ms.NumGC
	}
	m.mu.Unlock()
}

// StartRecording начинает запись метрик с заданным интервалом
func (m *systemMetrics) StartRecording(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.Record()
		for {
			select {
			case <-ticker.C:
				m.Record()
			case <-m.stopCh:
				return
			}
		}
	}()
	m.log.Infow("Process metrics recording started", "interval", interval)
}

// Stop останавливает запись метрик. Повторный вызов безопасен.
func (m *systemMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.log.Infow("Process metrics recording stopped")
	})
}
