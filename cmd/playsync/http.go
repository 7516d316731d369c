package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/playsync/pkg/pprof"
	"github.com/livekit/playsync/pkg/session"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/psrpc"
)

type statusHandler struct {
	s *session.Session
}

type viewerStatus struct {
	ID        string  `json:"id"`
	Offset    int64   `json:"offset"`
	Duration  int64   `json:"duration"`
	FrameRate float64 `json:"frame_rate"`
	Playing   bool    `json:"playing"`
}

type sessionStatus struct {
	SessionID string         `json:"session_id"`
	Time      int64          `json:"time"`
	Rate      float64        `json:"rate"`
	Playing   bool           `json:"playing"`
	Status    string         `json:"status"`
	Viewers   []viewerStatus `json:"viewers"`
}

func (h *statusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	state := h.s.Transport().State()
	status := sessionStatus{
		SessionID: h.s.ID(),
		Time:      h.s.Clock().Time(),
		Rate:      state.Rate,
		Playing:   state.Playing,
		Status:    h.s.Status(),
	}
	for _, v := range h.s.Viewers() {
		status.Viewers = append(status.Viewers, viewerStatus{
			ID:        v.ID(),
			Offset:    v.Offset(),
			Duration:  v.Duration(),
			FrameRate: v.FrameRate(),
			Playing:   v.IsPlaying(),
		})
	}

	info, err := json.Marshal(status)
	if err != nil {
		logger.Errorw("failed to read status", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(info)
}

// profileHandler serves /debug/pprof/{name}?seconds=N&debug=N
type profileHandler struct{}

func (p *profileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/debug/pprof/")
	seconds, _ := strconv.Atoi(r.URL.Query().Get("seconds"))
	debug, _ := strconv.Atoi(r.URL.Query().Get("debug"))

	b, err := pprof.GetProfileData(r.Context(), name, time.Duration(seconds)*time.Second, debug)
	if err != nil {
		var pErr psrpc.Error
		if errors.As(err, &pErr) && pErr.Code() == psrpc.NotFound {
			w.WriteHeader(http.StatusNotFound)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(b)
}
