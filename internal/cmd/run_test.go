package cmd

import (
	"context"
	"testing"
	"time"

	"simdispatch/internal/dispatcher"
	"simdispatch/internal/job"
	"simdispatch/internal/observability"
	"simdispatch/internal/testutil"
	"simdispatch/internal/worker"
	"simdispatch/pkg/webhook"
)

type closableWorker struct {
	id     string
	closed bool
}

func (w *closableWorker) ID() string                  { return w.id }
func (w *closableWorker) Kind() worker.Kind           { return worker.KindContainer }
func (w *closableWorker) Capacity() int               { return 1 }
func (w *closableWorker) CostPerJob() int             { return 1 }
func (w *closableWorker) Priority() int               { return 0 }
func (w *closableWorker) Ready(context.Context) error { return nil }
func (w *closableWorker) Execute(ctx context.Context, j job.Job) job.Outcome {
	return job.Succeeded(j.ID, w.id, "", 0)
}
func (w *closableWorker) Close() error { w.closed = true; return nil }

func TestMetricsRecorderNilPointer(t *testing.T) {
	var metrics *observability.Metrics
	if rec := metricsRecorder(metrics); rec != nil {
		t.Fatalf("expected nil recorder for nil metrics, got %#v", rec)
	}
}

func TestDispatcherWithoutMetricsSurvivesFailedDelivery(t *testing.T) {
	var metrics *observability.Metrics
	d := dispatcher.NewMemory(dispatcher.MemoryConfig{
		BufferSize:  10,
		Workers:     1,
		HTTPTimeout: time.Second,
	}, metricsRecorder(metrics))

	d.Dispatch(&dispatcher.Event{
		Payload:     webhook.New("simdispatch.job.exit", "run-1", "job-1", nil),
		Destination: "http://127.0.0.1:1",
	})

	testutil.MustWaitFor(t, func() bool {
		return d.Stats().Failed >= 1
	}, testutil.WithTimeout(10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Close(ctx)
}

func TestClosePoolReleasesWorkers(t *testing.T) {
	w := &closableWorker{id: "c-1"}
	closePool([]worker.Worker{w})
	if !w.closed {
		t.Error("expected Close to be called on the worker")
	}
}
