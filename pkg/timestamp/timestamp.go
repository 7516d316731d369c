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

package timestamp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/livekit/playsync/pkg/errors"
)

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
)

// Format renders ms as HH:mm:ss:SSS. Negative values are rendered as zero.
func Format(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / msPerHour
	m := (ms % msPerHour) / msPerMinute
	s := (ms % msPerMinute) / msPerSecond
	return fmt.Sprintf("%02d:%02d:%02d:%03d", h, m, s, ms%msPerSecond)
}

// Parse reads HH:mm:ss:SSS. Hours may be wider than two digits.
func Parse(value string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 4 {
		return 0, errors.ErrMalformedTimestamp(value)
	}

	widths := [4]int{0, 2, 2, 3}
	limits := [4]int64{-1, 60, 60, 1000}
	scale := [4]int64{msPerHour, msPerMinute, msPerSecond, 1}

	var total int64
	for i, part := range parts {
		if part == "" || (widths[i] > 0 && len(part) != widths[i]) {
			return 0, errors.ErrMalformedTimestamp(value)
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, errors.ErrMalformedTimestamp(value)
			}
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return 0, errors.ErrMalformedTimestamp(value)
		}
		if limits[i] > 0 && v >= limits[i] {
			return 0, errors.ErrMalformedTimestamp(value)
		}
		total += v * scale[i]
	}

	return total, nil
}
