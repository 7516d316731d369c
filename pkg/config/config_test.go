package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	conf, err := NewConfig("")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(conf.SessionID, SessionPrefix))
	require.Equal(t, "info", conf.Logging.Level)
	require.Equal(t, 31*time.Millisecond, conf.Clock.TickInterval)
	require.Equal(t, int64(500), conf.Sync.PulseMs())
	require.Equal(t, int64(200), conf.Sync.ThresholdMs())
	require.Equal(t, 5.0, conf.Sync.LowRateFPS)
	require.Equal(t, 2.0, conf.Sync.FakePlaybackRate)
	require.True(t, conf.Sync.DriftCorrection())
	require.Equal(t, 1.0, conf.Transport.PlayRate)
	require.Equal(t, 32.0, conf.Transport.ForwardRate)
	require.Equal(t, -32.0, conf.Transport.RewindRate)
	require.Equal(t, int64(5), conf.Transport.ShiftJog)
	require.Equal(t, int64(10), conf.Transport.CtrlJog)
	require.Zero(t, conf.Viewer.CallTimeout)
	require.Equal(t, 1000, conf.Undo.Limit)
	require.Zero(t, conf.UserLog.MaxSizeMB)
}

func TestOverrides(t *testing.T) {
	conf, err := NewConfig(`
logging:
  level: debug
user_log:
  filename: /tmp/playsync.log
prometheus_port: 9090
clock:
  tick_interval: 10ms
sync:
  pulse: 250ms
  threshold: 100ms
  correct_drift: false
viewer:
  call_timeout: 150ms
undo:
  limit: -1
session:
  variables: [speaker, gesture]
  viewers:
    - name: camera-a.mp4
      duration: 2m
      frame_rate: 25
    - name: camera-b.mp4
      duration: 90s
      offset: 1500ms
      drift: 0.01
`)
	require.NoError(t, err)

	require.Equal(t, "debug", conf.Logging.Level)
	require.Equal(t, 9090, conf.PrometheusPort)
	require.Equal(t, 10*time.Millisecond, conf.Clock.TickInterval)
	require.Equal(t, int64(250), conf.Sync.PulseMs())
	require.Equal(t, int64(100), conf.Sync.ThresholdMs())
	require.False(t, conf.Sync.DriftCorrection())
	require.Equal(t, 150*time.Millisecond, conf.Viewer.CallTimeout)
	require.Equal(t, -1, conf.Undo.Limit)
	require.Equal(t, 10, conf.UserLog.MaxSizeMB)
	require.Equal(t, []string{"speaker", "gesture"}, conf.Session.Variables)
	require.Len(t, conf.Session.Viewers, 2)
	require.Equal(t, 2*time.Minute, conf.Session.Viewers[0].Duration)
	require.Equal(t, 1500*time.Millisecond, conf.Session.Viewers[1].Offset)
	require.Equal(t, 0.01, conf.Session.Viewers[1].Drift)
}

func TestInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"yaml":         "sync: [",
		"rewind":       "transport:\n  rewind_rate: 4\n",
		"forward":      "transport:\n  forward_rate: -4\n",
		"timeout":      "viewer:\n  call_timeout: -1s\n",
		"viewer name":  "session:\n  viewers:\n    - duration: 1s\n",
		"viewer media": "session:\n  viewers:\n    - name: a.mp4\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewConfig(body)
			require.Error(t, err)
		})
	}
}
