package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/soundscribe/soundscribe/internal/job"
	"github.com/soundscribe/soundscribe/internal/observe"
	"github.com/soundscribe/soundscribe/internal/store"
	"github.com/soundscribe/soundscribe/internal/store/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newManager(t *testing.T, st store.Store, runner job.Runner, opts ...job.Option) *job.Manager {
	t.Helper()
	opts = append(opts, job.WithMetrics(testMetrics(t)))
	return job.New(st, runner, opts...)
}

// waitForStatus polls the store until the job reaches want or the deadline
// expires.
func waitForStatus(t *testing.T, st *mock.Store, id string, want store.JobStatus) store.JobRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := st.GetJob(context.Background(), id)
		if err == nil && rec.Status == want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %q", id, want)
	return store.JobRecord{}
}

func TestEnqueue_PersistsQueuedJob(t *testing.T) {
	st := mock.New()
	m := newManager(t, st, func(context.Context, store.JobRecord, job.ProgressFunc) error {
		return nil
	})

	rec, err := m.Enqueue(context.Background(), "url", "https://example.com/talk")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected a generated job ID")
	}
	if rec.Status != store.JobQueued {
		t.Errorf("status = %q, want %q", rec.Status, store.JobQueued)
	}

	stored, err := st.GetJob(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.SourceType != "url" || stored.Source != "https://example.com/talk" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestRun_SuccessTransitionsToCompleted(t *testing.T) {
	st := mock.New()
	m := newManager(t, st, func(_ context.Context, _ store.JobRecord, report job.ProgressFunc) error {
		report(30, "Transcribing audio")
		report(70, "Generating summary")
		return nil
	})
	m.Start(context.Background())
	defer m.Stop()

	rec, err := m.Enqueue(context.Background(), "upload", "talk.mp4")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	done := waitForStatus(t, st, rec.ID, store.JobCompleted)
	if done.Progress != 100 {
		t.Errorf("progress = %d, want 100", done.Progress)
	}
	if done.Message != "Processing complete" {
		t.Errorf("message = %q", done.Message)
	}
	if done.Error != "" {
		t.Errorf("error = %q, want empty", done.Error)
	}
}

func TestRun_FailureRecordsError(t *testing.T) {
	st := mock.New()
	m := newManager(t, st, func(context.Context, store.JobRecord, job.ProgressFunc) error {
		return errors.New("download failed: 404")
	})
	m.Start(context.Background())
	defer m.Stop()

	rec, err := m.Enqueue(context.Background(), "url", "https://example.com/gone")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	failed := waitForStatus(t, st, rec.ID, store.JobFailed)
	if failed.Error != "download failed: 404" {
		t.Errorf("error = %q", failed.Error)
	}
	if failed.Message != "Processing failed" {
		t.Errorf("message = %q", failed.Message)
	}
}

func TestRun_ClampsProgress(t *testing.T) {
	st := mock.New()
	block := make(chan struct{})
	m := newManager(t, st, func(_ context.Context, _ store.JobRecord, report job.ProgressFunc) error {
		report(150, "overshoot")
		<-block
		return nil
	})
	m.Start(context.Background())
	defer m.Stop()

	rec, err := m.Enqueue(context.Background(), "upload", "talk.mp4")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := st.GetJob(context.Background(), rec.ID)
		if err == nil && got.Message == "overshoot" {
			if got.Progress != 100 {
				t.Errorf("progress = %d, want 100", got.Progress)
			}
			close(block)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(block)
	t.Fatal("progress report never observed")
}

func TestEnqueue_QueueFull(t *testing.T) {
	st := mock.New()
	// Not started, so nothing drains the queue. One worker gives a buffer
	// of two slots.
	m := newManager(t, st, func(context.Context, store.JobRecord, job.ProgressFunc) error {
		return nil
	}, job.WithWorkers(1))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := m.Enqueue(ctx, "upload", "talk.mp4"); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}

	_, err := m.Enqueue(ctx, "upload", "overflow.mp4")
	if !errors.Is(err, job.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestStatus_NotFound(t *testing.T) {
	st := mock.New()
	m := newManager(t, st, func(context.Context, store.JobRecord, job.ProgressFunc) error {
		return nil
	})

	_, err := m.Status(context.Background(), "no-such-job")
	if !errors.Is(err, job.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSubscribe_ReceivesProgressUpdates(t *testing.T) {
	st := mock.New()
	release := make(chan struct{})
	m := newManager(t, st, func(_ context.Context, _ store.JobRecord, report job.ProgressFunc) error {
		<-release
		report(50, "Attributing speakers")
		return nil
	})
	m.Start(context.Background())
	defer m.Stop()

	rec, err := m.Enqueue(context.Background(), "upload", "talk.mp4")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	updates, cancel := m.Subscribe(rec.ID)
	defer cancel()
	close(release)

	var sawProgress, sawCompleted bool
	timeout := time.After(2 * time.Second)
	for !sawCompleted {
		select {
		case u := <-updates:
			if u.Progress == 50 && u.Message == "Attributing speakers" {
				sawProgress = true
			}
			if u.Status == store.JobCompleted {
				sawCompleted = true
			}
		case <-timeout:
			t.Fatal("timed out waiting for subscription updates")
		}
	}
	if !sawProgress {
		t.Error("never received the mid-pipeline progress update")
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	st := mock.New()
	m := newManager(t, st, func(context.Context, store.JobRecord, job.ProgressFunc) error {
		return nil
	})

	updates, cancel := m.Subscribe("some-job")
	cancel()

	if _, ok := <-updates; ok {
		t.Error("expected channel to be closed after cancel")
	}
}
