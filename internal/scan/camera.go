package scan

import (
	"context"
	"errors"
	"sync"
)

var ErrPermissionDenied = errors.New("camera permission denied")

// Stream is an acquired camera. Release must be safe to call more than once.
type Stream interface {
	Release()
}

type Camera interface {
	Acquire(ctx context.Context, sessionKey string) (Stream, error)
}

// ClientCamera models a camera that lives in the client: the client asks the
// user for access and reports the answer before a capture starts.
type ClientCamera struct {
	mu      sync.Mutex
	granted map[string]bool
	active  map[string]int
}

func NewClientCamera() *ClientCamera {
	return &ClientCamera{
		granted: make(map[string]bool),
		active:  make(map[string]int),
	}
}

// Report records whether the user granted camera access on sessionKey.
func (c *ClientCamera) Report(sessionKey string, granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.granted[sessionKey] = granted
}

func (c *ClientCamera) Acquire(ctx context.Context, sessionKey string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.granted[sessionKey] {
		return nil, ErrPermissionDenied
	}
	c.active[sessionKey]++
	return &clientStream{camera: c, sessionKey: sessionKey}, nil
}

// Active returns the number of unreleased streams for sessionKey.
func (c *ClientCamera) Active(sessionKey string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[sessionKey]
}

type clientStream struct {
	camera     *ClientCamera
	sessionKey string
	once       sync.Once
}

func (s *clientStream) Release() {
	s.once.Do(func() {
		s.camera.mu.Lock()
		defer s.camera.mu.Unlock()
		s.camera.active[s.sessionKey]--
		if s.camera.active[s.sessionKey] <= 0 {
			delete(s.camera.active, s.sessionKey)
		}
	})
}
