// Copyright 2025 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"time"

	"github.com/frostbyte73/core"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/livekit/playsync/pkg/cells"
	"github.com/livekit/playsync/pkg/clock"
	"github.com/livekit/playsync/pkg/config"
	"github.com/livekit/playsync/pkg/datastore"
	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/playsync/pkg/logging"
	"github.com/livekit/playsync/pkg/playback"
	"github.com/livekit/playsync/pkg/stats"
	"github.com/livekit/playsync/pkg/syncer"
	"github.com/livekit/playsync/pkg/transport"
	"github.com/livekit/playsync/pkg/undo"
	"github.com/livekit/playsync/pkg/viewer"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/tracer"
)

// Session owns one clock and everything driven by it.
type Session struct {
	conf *config.Config

	clock     *clock.Clock
	model     *playback.Model
	viewers   *viewer.Registry
	engine    *syncer.Engine
	transport *transport.Controller
	cells     *cells.Coordinator
	undo      *undo.Log
	store     datastore.Datastore
	monitor   *stats.SyncMonitor

	ringLog *logging.RingLog
	fileLog *logging.FileLog
	userLog logging.UserLog

	running atomic.Bool
	closing atomic.Bool
	closed  core.Fuse
}

type Option func(*options)

type options struct {
	clockOpts  []clock.Option
	registerer prometheus.Registerer
	userLogs   []logging.UserLog
}

// WithUserLog also reports user messages to l.
func WithUserLog(l logging.UserLog) Option {
	return func(o *options) {
		o.userLogs = append(o.userLogs, l)
	}
}

// WithTimeSource replaces the wall clock used to advance the session clock.
func WithTimeSource(now func() time.Time) Option {
	return func(o *options) {
		o.clockOpts = append(o.clockOpts, clock.WithTimeSource(now))
	}
}

// WithRegisterer registers the session metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

func New(conf *config.Config, store datastore.Datastore, opts ...Option) (*Session, error) {
	if conf == nil {
		return nil, errors.ErrNoConfig
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Session{
		conf:    conf,
		store:   store,
		model:   playback.New(),
		viewers: viewer.NewRegistry(),
		undo:    undo.NewLog(conf.Undo.Limit),
		monitor: stats.NewSyncMonitor(o.registerer, conf.SessionID),
		ringLog: logging.NewRingLog(conf.UserLog.RingSize),
	}

	userLogs := logging.MultiLog{s.ringLog, logging.NewProcessLog("sessionID", conf.SessionID)}
	if conf.UserLog.Filename != "" {
		s.fileLog = logging.NewFileLog(conf.UserLog)
		userLogs = append(userLogs, s.fileLog)
	}
	s.userLog = append(userLogs, o.userLogs...)

	s.clock = clock.New(append([]clock.Option{clock.WithTickInterval(conf.Clock.TickInterval)}, o.clockOpts...)...)
	s.engine = syncer.NewEngine(conf.Sync, s.clock, s.model, s.viewers, s.monitor)
	s.clock.RegisterListener(s.engine)
	s.transport = transport.NewController(conf.Transport, s.clock, s.model, s.viewers, s.userLog, s.monitor)
	s.cells = cells.NewCoordinator(s.clock, store, s.undo)

	logger.Infow("session created", "sessionID", conf.SessionID)
	return s, nil
}

func (s *Session) ID() string {
	return s.conf.SessionID
}

func (s *Session) Clock() *clock.Clock {
	return s.clock
}

func (s *Session) Model() *playback.Model {
	return s.model
}

func (s *Session) Transport() *transport.Controller {
	return s.transport
}

func (s *Session) Cells() *cells.Coordinator {
	return s.cells
}

func (s *Session) Undo() *undo.Log {
	return s.undo
}

func (s *Session) Datastore() datastore.Datastore {
	return s.store
}

func (s *Session) Viewers() []viewer.Viewer {
	return s.viewers.List()
}

// UserLog returns the messages reported to the user, oldest first.
func (s *Session) UserLog() []string {
	return s.ringLog.Messages()
}

// AddViewer registers v at offset on the session timeline. When a call timeout is
// configured, v is driven from its own goroutine and the returned viewer is the guard.
func (s *Session) AddViewer(v viewer.Viewer, offset int64) (viewer.Viewer, error) {
	if s.closed.IsBroken() {
		return nil, errors.ErrSessionClosed
	}

	if timeout := s.conf.Viewer.CallTimeout; timeout > 0 {
		g := viewer.NewGuard(v, timeout, s.conf.Viewer.QueueSize, s.onViewerError)
		if err := s.do(func() error { return s.engine.AddViewer(g, offset) }); err != nil {
			_ = g.Close()
			return nil, err
		}
		return g, nil
	}

	if err := s.do(func() error { return s.engine.AddViewer(v, offset) }); err != nil {
		return nil, err
	}
	return v, nil
}

// RemoveViewer shuts a viewer down. Unknown ids are ignored.
func (s *Session) RemoveViewer(id string) bool {
	var removed bool
	s.clock.Do(func() {
		removed = s.engine.RemoveViewer(id)
	})
	return removed
}

func (s *Session) UsingAssumedFPS() bool {
	return s.engine.UsingAssumedFPS()
}

// CreateCell creates a cell at the frame currently shown.
func (s *Session) CreateCell() (datastore.Cell, error) {
	var cell datastore.Cell
	err := s.do(func() error {
		s.engine.AdjustClock()
		var err error
		cell, err = s.cells.CreateCellAtCurrentTime()
		return err
	})
	if err != nil {
		s.userLog.Report("unable to create cell", err)
	}
	return cell, err
}

func (s *Session) CreatePointCell() (datastore.Cell, error) {
	var cell datastore.Cell
	err := s.do(func() error {
		s.engine.AdjustClock()
		var err error
		cell, err = s.cells.CreatePointCell()
		return err
	})
	if err != nil {
		s.userLog.Report("unable to create cell", err)
	}
	return cell, err
}

// Run ticks the clock until ctx is done or the session is closed.
func (s *Session) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Session.Run")
	defer span.End()

	if s.closed.IsBroken() {
		return errors.ErrSessionClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}

	go s.clock.Run()

	select {
	case <-ctx.Done():
		logger.Debugw("session context done", "sessionID", s.conf.SessionID)
	case <-s.closed.Watch():
	}
	return s.Close()
}

// Close stops playback and releases every viewer.
func (s *Session) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		<-s.closed.Watch()
		return nil
	}

	s.clock.Close()
	s.clock.Do(func() {
		s.clock.Stop()
		for _, v := range s.viewers.List() {
			s.engine.RemoveViewer(v.ID())
		}
	})

	errArray := &errors.ErrArray{}
	if s.fileLog != nil {
		errArray.AppendErr(s.fileLog.Close())
	}
	s.ringLog.WriteLogs()
	s.closed.Break()

	logger.Infow("session closed", "sessionID", s.conf.SessionID)
	if errArray.Len() > 0 {
		return errArray.ToError()
	}
	return nil
}

// do runs fn between clock ticks, so the engine and cells see a consistent clock.
func (s *Session) do(fn func() error) error {
	var err error
	s.clock.Do(func() {
		err = fn()
	})
	return err
}

func (s *Session) onViewerError(viewerID string, op viewer.OpType, err error) {
	s.monitor.IncViewerFault(op.String())
	logger.Warnw("viewer call failed", err, "viewerID", viewerID, "op", op)
}
