package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuslib/syllabus-analyzer/internal/progress"
)

// PrometheusSink exports pipeline progress metrics. It owns all collectors
// for stages started/completed/running, per-stage item counters, and stage
// duration histograms.
type PrometheusSink struct {
	stagesStarted   *prometheus.CounterVec
	stagesCompleted *prometheus.CounterVec
	stagesRunning   prometheus.Gauge
	stageDuration   *prometheus.HistogramVec
	itemsProcessed  *prometheus.CounterVec

	tracker *stageTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		stagesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syllabus_stages_started_total",
			Help: "Total stage runs started, partitioned by stage.",
		}, []string{"stage"}),
		stagesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syllabus_stages_completed_total",
			Help: "Total stage runs completed, partitioned by stage and result.",
		}, []string{"stage", "result"}),
		stagesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syllabus_stages_running",
			Help: "Current number of running stage executions.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "syllabus_stage_duration_seconds",
			Help:    "Wall time per completed stage run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"stage", "result"}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syllabus_items_processed_total",
			Help: "Documents processed per stage, partitioned by result.",
		}, []string{"stage", "result"}),
		tracker: newStageTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.stagesStarted,
		s.stagesCompleted,
		s.stagesRunning,
		s.stageDuration,
		s.itemsProcessed,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	stage := string(evt.Stage)
	switch evt.Kind {
	case progress.KindStageStart:
		s.stagesStarted.WithLabelValues(stage).Inc()
		if s.tracker.start(evt.JobID, stage) {
			s.stagesRunning.Inc()
		}
	case progress.KindStageDone:
		s.finishStage(evt, "success")
	case progress.KindStageError:
		s.finishStage(evt, "error")
	case progress.KindItemDone:
		result := "success"
		if !evt.OK {
			result = "error"
		}
		s.itemsProcessed.WithLabelValues(stage, result).Inc()
	}
}

func (s *PrometheusSink) finishStage(evt progress.Event, result string) {
	stage := string(evt.Stage)
	s.stagesCompleted.WithLabelValues(stage, result).Inc()
	if evt.Dur > 0 {
		s.stageDuration.WithLabelValues(stage, result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.JobID, stage) {
		s.stagesRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type stageTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newStageTracker() *stageTracker {
	return &stageTracker{running: make(map[string]struct{})}
}

func (t *stageTracker) key(jobID, stage string) string {
	return jobID + "/" + stage
}

func (t *stageTracker) start(jobID, stage string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := t.key(jobID, stage)
	if _, ok := t.running[key]; ok {
		return false
	}
	t.running[key] = struct{}{}
	return true
}

func (t *stageTracker) complete(jobID, stage string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := t.key(jobID, stage)
	if _, ok := t.running[key]; !ok {
		return false
	}
	delete(t.running, key)
	return true
}
