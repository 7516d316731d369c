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
	"fmt"
	"strings"

	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/playsync/pkg/timestamp"
	"github.com/livekit/playsync/pkg/transport"
)

type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a command line such as "find 00:01:00:000" into a Command.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, errors.ErrInvalidArgument("command", line)
	}
	return Command{
		Name: strings.ToLower(fields[0]),
		Args: fields[1:],
	}, nil
}

// Commands lists the names Dispatch understands.
var Commands = []string{
	"play", "pause", "stop", "forward", "rewind",
	"shuttle+", "shuttle-", "jog+", "jog-",
	"find", "back", "region", "clear-region",
	"cell", "point", "stop-time", "start-selected", "stop-selected",
	"undo", "redo", "status", "log",
}

// Dispatch runs one command against the session and returns text for the user.
func (s *Session) Dispatch(cmd Command) (string, error) {
	if s.closed.IsBroken() {
		return "", errors.ErrSessionClosed
	}

	t := s.transport
	switch cmd.Name {
	case "play":
		t.Play()
	case "pause":
		t.Pause()
	case "stop":
		t.Stop()
	case "forward", "ff":
		t.Forward()
	case "rewind", "rw":
		t.Rewind()
	case "shuttle+":
		if err := t.ShuttleForward(); err != nil {
			return "", err
		}
	case "shuttle-":
		if err := t.ShuttleBack(); err != nil {
			return "", err
		}
	case "jog+", "jog-":
		mod, err := jogModifier(cmd.Args)
		if err != nil {
			return "", err
		}
		if cmd.Name == "jog+" {
			err = t.JogForward(mod)
		} else {
			err = t.JogBack(mod)
		}
		if err != nil {
			return "", err
		}
	case "find":
		if err := requireArgs(cmd, 1); err != nil {
			return "", err
		}
		if err := t.FindTimestamp(cmd.Args[0]); err != nil {
			return "", err
		}
	case "back":
		if err := requireArgs(cmd, 1); err != nil {
			return "", err
		}
		if err := t.GoBackTimestamp(cmd.Args[0]); err != nil {
			return "", err
		}
	case "region":
		if err := requireArgs(cmd, 2); err != nil {
			return "", err
		}
		if err := t.SetRegionOfInterestTimestamps(cmd.Args[0], cmd.Args[1]); err != nil {
			return "", err
		}
	case "clear-region":
		t.ClearRegionOfInterest()
	case "cell":
		cell, err := s.CreateCell()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("created cell %s in %s at %s", cell.ID(), cell.Variable(), timestamp.Format(cell.Onset())), nil
	case "point":
		cell, err := s.CreatePointCell()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("created point cell %s in %s at %s", cell.ID(), cell.Variable(), timestamp.Format(cell.Onset())), nil
	case "stop-time":
		if err := s.do(s.cells.SetNewCellStopTime); err != nil {
			return "", err
		}
	case "start-selected":
		if err := s.do(s.cells.SetSelectedCellStartTime); err != nil {
			return "", err
		}
	case "stop-selected":
		if err := s.do(s.cells.SetSelectedCellStopTime); err != nil {
			return "", err
		}
	case "undo":
		desc, err := s.undo.Undo()
		if err != nil {
			return "", err
		}
		return "undid " + desc, nil
	case "redo":
		desc, err := s.undo.Redo()
		if err != nil {
			return "", err
		}
		return "redid " + desc, nil
	case "status":
	case "log":
		return strings.Join(s.UserLog(), "\n"), nil
	default:
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownCommand, cmd.Name)
	}

	return s.Status(), nil
}

// Status describes the transport state and the needle position.
func (s *Session) Status() string {
	state := s.transport.State()
	start, end := s.model.Window()
	status := fmt.Sprintf("%s rate=%g playing=%t window=%s-%s",
		timestamp.Format(s.clock.Time()),
		state.Rate,
		state.Playing,
		timestamp.Format(start),
		timestamp.Format(end),
	)
	if s.UsingAssumedFPS() {
		status += " (assumed fps)"
	}
	return status
}

func jogModifier(args []string) (transport.JogModifier, error) {
	var shift, ctrl bool
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "shift":
			shift = true
		case "ctrl":
			ctrl = true
		default:
			return transport.JogNone, errors.ErrInvalidArgument("jog modifier", arg)
		}
	}
	return transport.Modifier(shift, ctrl), nil
}

func requireArgs(cmd Command, n int) error {
	if len(cmd.Args) != n {
		return errors.ErrInvalidArgument(cmd.Name+" arguments", strings.Join(cmd.Args, " "))
	}
	return nil
}
