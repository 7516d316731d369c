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

package transport

import (
	"github.com/livekit/playsync/pkg/errors"
)

// ShuttleRates are the rates reachable by shuttling, in order.
var ShuttleRates = []float64{
	-32, -16, -8, -4, -2, -1,
	-1.0 / 2, -1.0 / 4, -1.0 / 8, -1.0 / 16, -1.0 / 32,
	0,
	1.0 / 32, 1.0 / 16, 1.0 / 8, 1.0 / 4, 1.0 / 2,
	1, 2, 4, 8, 16, 32,
}

// ShuttleIndex returns the position of rate in ShuttleRates.
func ShuttleIndex(rate float64) (int, error) {
	for i, r := range ShuttleRates {
		if r == rate {
			return i, nil
		}
	}
	return -1, errors.ErrRateNotInTable(rate)
}

// NextShuttleRate returns the rate jump entries away from rate.
func NextShuttleRate(rate float64, jump int) (float64, error) {
	i, err := ShuttleIndex(rate)
	if err != nil {
		return 0, err
	}
	next := i + jump
	if next < 0 || next >= len(ShuttleRates) {
		return 0, errors.ErrRateOutOfTable(rate, jump)
	}
	return ShuttleRates[next], nil
}
