package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/scan"
)

// ScanHandler drives the body-scan page. The browser reports whether the
// user granted camera access; the capture itself is keyed by device.
type ScanHandler struct {
	scans   *scan.Service
	camera  *scan.ClientCamera
	timeout time.Duration
	log     *slog.Logger
}

func NewScanHandler(scans *scan.Service, camera *scan.ClientCamera, timeout time.Duration, log *slog.Logger) *ScanHandler {
	return &ScanHandler{
		scans:   scans,
		camera:  camera,
		timeout: timeout,
		log:     log,
	}
}

type StartScanRequestDTO struct {
	CameraGranted bool `json:"camera_granted"`
}

type ScanHistoryDTO struct {
	Scans       []domain.Scan `json:"scans"`
	TotalScans  int           `json:"total_scans"`
	TotalTryOns int           `json:"total_try_ons"`
}

// POST /api/v1/scan/start
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	ident, ok := requireUser(w, s)
	if !ok {
		return
	}

	var req StartScanRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	h.camera.Report(s.DeviceID(), req.CameraGranted)
	st, err := h.scans.Start(r.Context(), s.DeviceID(), ident, r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrPermissionDenied), errors.Is(err, scan.ErrCameraUnavailable):
			respondJSON(w, http.StatusForbidden, ErrorResponse{
				Error:   "camera access denied",
				Code:    "camera_unavailable",
				Details: "camera stays disabled for this session",
			})
		case errors.Is(err, scan.ErrAlreadyRunning):
			respondError(w, http.StatusConflict, "already_running", err.Error())
		case errors.Is(err, scan.ErrShuttingDown):
			respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		case errors.Is(err, scan.ErrNotAuthenticated):
			respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		default:
			respondInternal(w, r, h.log, err)
		}
		return
	}
	respondJSON(w, http.StatusAccepted, st)
}

// DELETE /api/v1/scan
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if !h.scans.Cancel(s.DeviceID()) {
		respondError(w, http.StatusNotFound, "not_found", "no scan running")
		return
	}
	respondJSON(w, http.StatusOK, h.scans.Status(s.DeviceID()))
}

// GET /api/v1/scan
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scans.Status(getSession(r.Context()).DeviceID()))
}

// GET /api/v1/scan/history
func (h *ScanHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ident, ok := requireUser(w, getSession(r.Context()))
	if !ok {
		return
	}
	scans, tryOns, err := h.scans.History(ctx, ident.UserID())
	if err != nil {
		respondInternal(w, r, h.log, err)
		return
	}
	if scans == nil {
		scans = []domain.Scan{}
	}
	respondJSON(w, http.StatusOK, ScanHistoryDTO{Scans: scans, TotalScans: len(scans), TotalTryOns: tryOns})
}
