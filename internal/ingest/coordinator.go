// Package ingest fans camera frames out to per-camera workers. Each
// camera gets its own bounded queue and goroutine, so a slow or broken
// camera backs up only its own pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/recognize"
	"github.com/kozaktomas/face-attend/internal/vision"
)

var (
	// ErrQueueFull is returned when a camera's queue has no room. The
	// frame is dropped; the caller may retry or lower the frame rate.
	ErrQueueFull = errors.New("camera queue full, frame dropped")
	// ErrNotRunning is returned when frames arrive before Run.
	ErrNotRunning = errors.New("ingestion coordinator not running")
	// ErrUnknownCamera is returned for queries about a camera that has
	// never submitted a frame.
	ErrUnknownCamera = errors.New("unknown camera")
)

// FaceDetector finds faces in a frame and computes their embeddings.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]vision.Face, error)
}

// Resolver answers identity queries for single embeddings.
type Resolver interface {
	Match(embedding []float32) (recognize.MatchResult, error)
}

// AttendanceSink receives accepted sightings.
type AttendanceSink interface {
	Observe(ctx context.Context, s attendance.Sighting) (attendance.Entry, bool, error)
}

// Options configure per-camera behavior.
type Options struct {
	// QueueSize bounds each camera's frame backlog.
	QueueSize int
	// MaxFailures is how many consecutive pipeline failures degrade a
	// camera. A single success resets the count.
	MaxFailures int
	// RecentMatches is how many results each camera keeps for the API.
	RecentMatches int
}

// Coordinator routes frames to per-camera workers and tracks their health.
type Coordinator struct {
	detector    FaceDetector
	matcher     Resolver
	attendance  AttendanceSink
	opts        Options
	maxFailures int

	mu      sync.RWMutex
	cameras map[string]*camera
	group   *errgroup.Group
	runCtx  context.Context
}

// NewCoordinator wires the pipeline stages together.
func NewCoordinator(detector FaceDetector, matcher Resolver, sink AttendanceSink, opts Options) (*Coordinator, error) {
	if detector == nil || matcher == nil || sink == nil {
		return nil, fmt.Errorf("detector, matcher and attendance sink are all required")
	}
	if opts.QueueSize < 1 {
		return nil, fmt.Errorf("queue size must be at least 1, got %d", opts.QueueSize)
	}
	if opts.MaxFailures < 1 {
		return nil, fmt.Errorf("max failures must be at least 1, got %d", opts.MaxFailures)
	}
	return &Coordinator{
		detector:    detector,
		matcher:     matcher,
		attendance:  sink,
		opts:        opts,
		maxFailures: opts.MaxFailures,
		cameras:     make(map[string]*camera),
	}, nil
}

// Run blocks until the context is cancelled. Camera workers are started
// lazily as frames arrive and all stop together on shutdown.
func (co *Coordinator) Run(ctx context.Context) error {
	group, runCtx := errgroup.WithContext(ctx)

	co.mu.Lock()
	co.group = group
	co.runCtx = runCtx
	// Workers registered before Run get started now.
	for _, cam := range co.cameras {
		cam := cam
		group.Go(func() error {
			cam.run(runCtx, co)
			return nil
		})
	}
	co.mu.Unlock()

	<-runCtx.Done()

	err := group.Wait()

	co.mu.Lock()
	co.group = nil
	co.runCtx = nil
	co.mu.Unlock()

	if err != nil {
		return err
	}
	return ctx.Err()
}

// cameraFor returns the worker for an ID, creating and starting it on
// first use.
func (co *Coordinator) cameraFor(id string) *camera {
	co.mu.RLock()
	cam, ok := co.cameras[id]
	co.mu.RUnlock()
	if ok {
		return cam
	}

	co.mu.Lock()
	defer co.mu.Unlock()
	if cam, ok = co.cameras[id]; ok {
		return cam
	}
	cam = newCamera(id, co.opts.QueueSize, co.opts.RecentMatches)
	co.cameras[id] = cam
	if co.group != nil {
		runCtx := co.runCtx
		co.group.Go(func() error {
			cam.run(runCtx, co)
			return nil
		})
	}
	return cam
}

// SubmitFrame queues a frame for its camera without blocking. When the
// camera's queue is full the frame is dropped and ErrQueueFull returned.
func (co *Coordinator) SubmitFrame(frame Frame) error {
	if frame.CameraID == "" {
		return fmt.Errorf("frame has no camera id")
	}

	co.mu.RLock()
	running := co.group != nil
	co.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	cam := co.cameraFor(frame.CameraID)
	select {
	case cam.frames <- frame:
		return nil
	default:
		cam.mu.Lock()
		cam.dropped++
		cam.mu.Unlock()
		return fmt.Errorf("camera %s: %w", frame.CameraID, ErrQueueFull)
	}
}

// RecentMatches returns a camera's latest results, newest first.
func (co *Coordinator) RecentMatches(cameraID string) ([]recognize.MatchResult, error) {
	co.mu.RLock()
	cam, ok := co.cameras[cameraID]
	co.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("camera %s: %w", cameraID, ErrUnknownCamera)
	}
	return cam.recentMatches(), nil
}

// Stats returns a snapshot for every known camera, ordered by ID.
func (co *Coordinator) Stats() []CameraStats {
	co.mu.RLock()
	cams := make([]*camera, 0, len(co.cameras))
	for _, cam := range co.cameras {
		cams = append(cams, cam)
	}
	co.mu.RUnlock()

	stats := make([]CameraStats, 0, len(cams))
	for _, cam := range cams {
		stats = append(stats, cam.stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}
