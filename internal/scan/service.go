// Package scan runs timed body-scan captures.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

var (
	ErrNotAuthenticated  = errors.New("sign in required to scan")
	ErrCameraUnavailable = errors.New("camera unavailable for this session")
	ErrAlreadyRunning    = errors.New("a scan is already running")
	ErrShuttingDown      = errors.New("scan service is shutting down")
)

const (
	DefaultCountdown = 30
	saveTimeout      = 10 * time.Second
)

var mobileUserAgent = regexp.MustCompile(`Mobile|Android|iPhone|iPad`)

// DeviceClass classifies a User-Agent as "mobile" or "desktop".
func DeviceClass(userAgent string) string {
	if mobileUserAgent.MatchString(userAgent) {
		return "mobile"
	}
	return "desktop"
}

type Status struct {
	Running        bool         `json:"running"`
	Remaining      int          `json:"remaining"`
	CameraDisabled bool         `json:"camera_disabled"`
	LastError      string       `json:"last_error,omitempty"`
	LastScan       *domain.Scan `json:"last_scan,omitempty"`
}

type capture struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type Service struct {
	camera    Camera
	scans     repository.ScanRepository
	countdown int
	tick      time.Duration
	log       *slog.Logger

	mu       sync.Mutex
	running  map[string]*capture
	status   map[string]Status
	disabled map[string]bool
	closed   bool
	wg       sync.WaitGroup
}

func NewService(camera Camera, scans repository.ScanRepository, countdown int, tick time.Duration, log *slog.Logger) *Service {
	if countdown <= 0 {
		countdown = DefaultCountdown
	}
	if tick <= 0 {
		tick = time.Second
	}
	return &Service{
		camera:    camera,
		scans:     scans,
		countdown: countdown,
		tick:      tick,
		log:       log,
		running:   make(map[string]*capture),
		status:    make(map[string]Status),
		disabled:  make(map[string]bool),
	}
}

// Start acquires the camera and begins the countdown. The capture outlives
// ctx; use Cancel to stop it.
func (s *Service) Start(ctx context.Context, sessionKey string, ident domain.Identity, userAgent string) (Status, error) {
	if ident.IsGuest() {
		return Status{}, ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return Status{}, ErrShuttingDown
	case s.disabled[sessionKey]:
		return s.status[sessionKey], ErrCameraUnavailable
	case s.running[sessionKey] != nil:
		return s.status[sessionKey], ErrAlreadyRunning
	}

	stream, err := s.camera.Acquire(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			s.disabled[sessionKey] = true
			s.status[sessionKey] = Status{CameraDisabled: true, LastError: err.Error()}
		}
		return s.status[sessionKey], err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &capture{cancel: cancel, done: make(chan struct{})}
	s.running[sessionKey] = c
	st := Status{Running: true, Remaining: s.countdown}
	s.status[sessionKey] = st

	s.wg.Add(1)
	go s.run(runCtx, c, stream, sessionKey, ident.UserID(), DeviceClass(userAgent))

	s.log.InfoContext(ctx, "scan started", slog.String("user_id", ident.UserID()), slog.Int("countdown", s.countdown))
	return st, nil
}

func (s *Service) run(ctx context.Context, c *capture, stream Stream, sessionKey, userID, device string) {
	defer s.wg.Done()
	defer close(c.done)
	defer stream.Release()
	defer c.cancel()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	remaining := s.countdown
	for remaining > 0 {
		select {
		case <-ctx.Done():
			s.finish(sessionKey, Status{})
			s.log.Info("scan cancelled", slog.String("user_id", userID), slog.Int("remaining", remaining))
			return
		case <-ticker.C:
			remaining--
			s.setRemaining(sessionKey, remaining)
		}
	}

	scan := domain.Scan{
		ScanID:    "scan_" + uuid.NewString(),
		UserID:    userID,
		Device:    device,
		CreatedAt: time.Now().UTC(),
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.scans.PutScan(saveCtx, userID, scan); err != nil {
		s.log.Error("save scan failed", slog.String("user_id", userID), slog.Any("error", err))
		s.finish(sessionKey, Status{LastError: fmt.Sprintf("save scan: %v", err)})
		return
	}

	s.log.Info("scan completed", slog.String("user_id", userID), slog.String("scan_id", scan.ScanID))
	s.finish(sessionKey, Status{LastScan: &scan})
}

func (s *Service) setRemaining(sessionKey string, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[sessionKey]
	st.Remaining = remaining
	s.status[sessionKey] = st
}

func (s *Service) finish(sessionKey string, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, sessionKey)
	s.status[sessionKey] = st
}

// Cancel stops a running capture and waits until its camera is released.
// It reports whether a capture was running.
func (s *Service) Cancel(sessionKey string) bool {
	s.mu.Lock()
	c := s.running[sessionKey]
	s.mu.Unlock()
	if c == nil {
		return false
	}
	c.cancel()
	<-c.done
	return true
}

func (s *Service) Status(sessionKey string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[sessionKey]
	st.CameraDisabled = s.disabled[sessionKey]
	return st
}

// History returns the user's scans, newest first, and their total try-ons.
func (s *Service) History(ctx context.Context, userID string) ([]domain.Scan, int, error) {
	scans, err := s.scans.GetScans(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	tryOns := 0
	for _, sc := range scans {
		tryOns += sc.TryOnCount
	}
	return scans, tryOns, nil
}

// Shutdown cancels every capture and waits for the cameras to be released.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, c := range s.running {
		c.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
