package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
)

type mockScanRepository struct {
	mu    sync.Mutex
	scans map[string][]domain.Scan
	err   error
}

func newMockScanRepository() *mockScanRepository {
	return &mockScanRepository{scans: make(map[string][]domain.Scan)}
}

func (m *mockScanRepository) GetScans(_ context.Context, userID string) ([]domain.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Scan{}, m.scans[userID]...), nil
}

func (m *mockScanRepository) PutScan(_ context.Context, userID string, scan domain.Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.scans[userID] = append([]domain.Scan{scan}, m.scans[userID]...)
	return nil
}

func (m *mockScanRepository) count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scans[userID])
}

// countingStream counts Release calls
type countingStream struct {
	mu       sync.Mutex
	releases int
}

func (s *countingStream) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
}

func (s *countingStream) released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

type countingCamera struct {
	stream *countingStream
}

func (c *countingCamera) Acquire(context.Context, string) (Stream, error) {
	return c.stream, nil
}

var ada = domain.Authenticated("ada")

func TestDeviceClass(t *testing.T) {
	assert.Equal(t, "mobile", DeviceClass("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"))
	assert.Equal(t, "mobile", DeviceClass("Mozilla/5.0 (Linux; Android 14)"))
	assert.Equal(t, "desktop", DeviceClass("Mozilla/5.0 (X11; Linux x86_64)"))
	assert.Equal(t, "desktop", DeviceClass(""))
}

func TestService_CompletesAndSaves(t *testing.T) {
	repo := newMockScanRepository()
	stream := &countingStream{}
	svc := NewService(&countingCamera{stream: stream}, repo, 3, time.Millisecond, logger.Discard())

	st, err := svc.Start(context.Background(), "dev-1", ada, "Android")
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, 3, st.Remaining)

	require.Eventually(t, func() bool { return repo.count("ada") == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !svc.Status("dev-1").Running }, time.Second, time.Millisecond)

	st = svc.Status("dev-1")
	require.NotNil(t, st.LastScan)
	assert.Equal(t, "mobile", st.LastScan.Device)
	assert.Zero(t, st.LastScan.TryOnCount)
	assert.Nil(t, st.LastScan.Height)
	require.Eventually(t, func() bool { return stream.released() == 1 }, time.Second, time.Millisecond)
}

func TestService_CancelReleasesOnce(t *testing.T) {
	repo := newMockScanRepository()
	stream := &countingStream{}
	svc := NewService(&countingCamera{stream: stream}, repo, 1000, time.Hour, logger.Discard())

	_, err := svc.Start(context.Background(), "dev-1", ada, "")
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), "dev-1", ada, "")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	assert.True(t, svc.Cancel("dev-1"))
	assert.Equal(t, 1, stream.released())
	assert.False(t, svc.Status("dev-1").Running)
	assert.False(t, svc.Cancel("dev-1"))
	assert.Zero(t, repo.count("ada"))
}

func TestService_RequestContextDoesNotStopCapture(t *testing.T) {
	stream := &countingStream{}
	svc := NewService(&countingCamera{stream: stream}, newMockScanRepository(), 1000, time.Hour, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Start(ctx, "dev-1", ada, "")
	require.NoError(t, err)
	cancel()

	time.Sleep(10 * time.Millisecond)
	assert.True(t, svc.Status("dev-1").Running)
	assert.Zero(t, stream.released())

	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Equal(t, 1, stream.released())
}

func TestService_ShutdownReleasesEverything(t *testing.T) {
	camera := NewClientCamera()
	camera.Report("dev-1", true)
	camera.Report("dev-2", true)
	svc := NewService(camera, newMockScanRepository(), 1000, time.Hour, logger.Discard())

	_, err := svc.Start(context.Background(), "dev-1", ada, "")
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), "dev-2", domain.Authenticated("grace"), "")
	require.NoError(t, err)
	assert.Equal(t, 1, camera.Active("dev-1"))

	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Zero(t, camera.Active("dev-1"))
	assert.Zero(t, camera.Active("dev-2"))

	_, err = svc.Start(context.Background(), "dev-1", ada, "")
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestService_PermissionDeniedDisablesCamera(t *testing.T) {
	camera := NewClientCamera()
	camera.Report("dev-1", false)
	svc := NewService(camera, newMockScanRepository(), 3, time.Millisecond, logger.Discard())

	_, err := svc.Start(context.Background(), "dev-1", ada, "")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.True(t, svc.Status("dev-1").CameraDisabled)

	camera.Report("dev-1", true)
	_, err = svc.Start(context.Background(), "dev-1", ada, "")
	assert.ErrorIs(t, err, ErrCameraUnavailable)
	assert.Zero(t, camera.Active("dev-1"))
}

func TestService_GuestCannotScan(t *testing.T) {
	svc := NewService(NewClientCamera(), newMockScanRepository(), 3, time.Millisecond, logger.Discard())

	_, err := svc.Start(context.Background(), "dev-1", domain.Guest(), "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestService_SaveFailureIsReported(t *testing.T) {
	repo := newMockScanRepository()
	repo.err = errors.New("store down")
	stream := &countingStream{}
	svc := NewService(&countingCamera{stream: stream}, repo, 1, time.Millisecond, logger.Discard())

	_, err := svc.Start(context.Background(), "dev-1", ada, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return svc.Status("dev-1").LastError != "" }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return stream.released() == 1 }, time.Second, time.Millisecond)
	assert.False(t, svc.Status("dev-1").Running)
}

func TestService_History(t *testing.T) {
	repo := newMockScanRepository()
	repo.scans["ada"] = []domain.Scan{{ScanID: "s2", TryOnCount: 3}, {ScanID: "s1", TryOnCount: 2}}
	svc := NewService(NewClientCamera(), repo, 3, time.Millisecond, logger.Discard())

	scans, tryOns, err := svc.History(context.Background(), "ada")
	require.NoError(t, err)
	assert.Len(t, scans, 2)
	assert.Equal(t, 5, tryOns)
}
