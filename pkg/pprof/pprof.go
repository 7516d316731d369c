package pprof

import (
	"bytes"
	"context"
	"runtime/pprof"
	"time"

	"github.com/livekit/playsync/pkg/errors"
)

const (
	cpuProfileName          = "cpu"
	defaultCPUProfileLength = 30 * time.Second
)

// GetProfileData returns the named runtime profile. A cpu profile is sampled
// for length, or until ctx is done.
func GetProfileData(ctx context.Context, profileName string, length time.Duration, debug int) ([]byte, error) {
	switch profileName {
	case cpuProfileName:
		return GetCpuProfileData(ctx, length)
	default:
		return GetGenericProfileData(profileName, debug)
	}
}

func GetCpuProfileData(ctx context.Context, length time.Duration) ([]byte, error) {
	if length <= 0 {
		length = defaultCPUProfileLength
	}

	buf := &bytes.Buffer{}
	if err := pprof.StartCPUProfile(buf); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		// the caller is gone, stop without waiting
		go pprof.StopCPUProfile()
		return nil, context.Canceled
	case <-time.After(length):
	}

	pprof.StopCPUProfile()
	return buf.Bytes(), nil
}

func GetGenericProfileData(profileName string, debug int) ([]byte, error) {
	pp := pprof.Lookup(profileName)
	if pp == nil {
		return nil, errors.ErrProfileNotFound(profileName)
	}

	buf := &bytes.Buffer{}
	if err := pp.WriteTo(buf, debug); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
