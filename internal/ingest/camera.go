package ingest

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/recognize"
	"github.com/kozaktomas/face-attend/internal/vision"
)

// CameraState reports the health of one camera pipeline.
type CameraState int

const (
	CameraActive CameraState = iota
	CameraDegraded
)

func (s CameraState) String() string {
	if s == CameraDegraded {
		return "degraded"
	}
	return "active"
}

// Frame is one captured image from a camera.
type Frame struct {
	CameraID   string
	Data       []byte
	CapturedAt time.Time
}

// CameraStats is a point-in-time snapshot of one camera's counters.
type CameraStats struct {
	ID              string    `json:"id"`
	State           string    `json:"state"`
	QueueDepth      int       `json:"queue_depth"`
	FramesProcessed uint64    `json:"frames_processed"`
	FramesDropped   uint64    `json:"frames_dropped"`
	Failures        uint64    `json:"failures"`
	Accepted        uint64    `json:"accepted"`
	Rejected        uint64    `json:"rejected"`
	LastFrameAt     time.Time `json:"last_frame_at,omitzero"`
}

// camera owns one bounded frame queue and the worker that drains it.
// All of its counters are guarded by mu; the worker is the only writer
// of the pipeline results.
type camera struct {
	id     string
	frames chan Frame

	mu          sync.Mutex
	state       CameraState
	consecFails int
	processed   uint64
	dropped     uint64
	failures    uint64
	accepted    uint64
	rejected    uint64
	lastFrameAt time.Time
	recent      []recognize.MatchResult
	recentLimit int
}

func newCamera(id string, queueSize, recentLimit int) *camera {
	return &camera{
		id:          id,
		frames:      make(chan Frame, queueSize),
		recentLimit: recentLimit,
	}
}

// run drains the camera's queue until the context is cancelled. A panic
// or error in one camera's pipeline never reaches the others; run only
// returns on shutdown.
func (c *camera) run(ctx context.Context, co *Coordinator) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.frames:
			c.process(ctx, co, frame)
		}
	}
}

func (c *camera) process(ctx context.Context, co *Coordinator, frame Frame) {
	c.mu.Lock()
	c.processed++
	c.lastFrameAt = frame.CapturedAt
	c.mu.Unlock()

	faces, err := co.detector.DetectFaces(ctx, frame.Data)
	if errors.Is(err, vision.ErrNoFace) {
		// An empty frame is normal operation, not a pipeline failure.
		c.recordSuccess()
		return
	}
	if err != nil {
		c.recordFailure(err, co.maxFailures)
		return
	}
	c.recordSuccess()

	for _, face := range faces {
		result, err := co.matcher.Match(face.Embedding)
		if err != nil {
			if errors.Is(err, recognize.ErrIndexNotReady) {
				// Nothing enrolled yet; drop silently until the first rebuild.
				return
			}
			log.Printf("WARNING: camera %s: match failed: %v", c.id, err)
			continue
		}
		result.CameraID = c.id
		if !frame.CapturedAt.IsZero() {
			result.Timestamp = frame.CapturedAt.UTC()
		}
		c.remember(result)

		if !result.Accepted {
			continue
		}
		_, _, err = co.attendance.Observe(ctx, attendance.Sighting{
			Identity:   result.Label,
			CameraID:   c.id,
			Similarity: result.Similarity,
			At:         result.Timestamp,
		})
		if err != nil {
			log.Printf("WARNING: camera %s: attendance observe failed: %v", c.id, err)
		}
	}
}

func (c *camera) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecFails = 0
	if c.state == CameraDegraded {
		log.Printf("camera %s recovered", c.id)
		c.state = CameraActive
	}
}

func (c *camera) recordFailure(err error, maxFailures int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	c.consecFails++
	if c.state == CameraActive && c.consecFails >= maxFailures {
		log.Printf("WARNING: camera %s degraded after %d consecutive failures, last: %v",
			c.id, c.consecFails, err)
		c.state = CameraDegraded
	}
}

func (c *camera) remember(result recognize.MatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result.Accepted {
		c.accepted++
	} else {
		c.rejected++
	}
	if c.recentLimit <= 0 {
		return
	}
	c.recent = append(c.recent, result)
	if len(c.recent) > c.recentLimit {
		c.recent = c.recent[len(c.recent)-c.recentLimit:]
	}
}

// recentMatches returns the newest results first.
func (c *camera) recentMatches() []recognize.MatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]recognize.MatchResult, len(c.recent))
	for i, r := range c.recent {
		out[len(c.recent)-1-i] = r
	}
	return out
}

func (c *camera) stats() CameraStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CameraStats{
		ID:              c.id,
		State:           c.state.String(),
		QueueDepth:      len(c.frames),
		FramesProcessed: c.processed,
		FramesDropped:   c.dropped,
		Failures:        c.failures,
		Accepted:        c.accepted,
		Rejected:        c.rejected,
		LastFrameAt:     c.lastFrameAt,
	}
}
