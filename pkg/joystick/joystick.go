package joystick

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Button and pad mappings:
//
// Buttons
//
//    Square    = 0
//    Cross     = 1
//    Circle    = 2
//    Triangle  = 3
//    L1        = 4
//    R1        = 5
//    L2        = 6 (also an axis)
//    R2        = 7 (also an axis)
//    Share     = 8
//    Options   = 9
//    L stick   = 10
//    R stick   = 11
//    PS        = 12
//    Pad click = 13
//
// Axes
//
//    D-pad   u/d = 7 (up = -32767; down = +32767)
//            l/r = 6 (left = -32767; right = +32767)
//    L stick u/d = 1 (up = -32767; down = +32767)
//            l/r = 0 (left = -32767; right = +32767)
//    R stick u/d = 4 (up = -32767; down = +32767)
//            l/r = 3 (left = -32767; right = +32767)
//    L2          = 2 (unpressed = -32767; fully-pressed = 32767)
//    R2          = 5 (unpressed = -32767; fully-pressed = 32767)

type EventType uint8

const (
	EventTypeButton = 1
	EventTypeAxis   = 2

	eventTypeInit = 0x80
)

const DefaultDevice = "/dev/input/js0"

const (
	ButtonSquare   = 3
	ButtonCross    = 0
	ButtonCircle   = 1
	ButtonTriangle = 2
	ButtonL1       = 4
	ButtonR1       = 5
	ButtonL2       = 6
	ButtonR2       = 7
	ButtonShare    = 8
	ButtonOptions  = 9
	ButtonLStick   = 11
	ButtonRStick   = 12
	ButtonPS       = 10
	//ButtonPadClick =

	AxisLStickX = 0
	AxisLStickY = 1
	AxisRStickX = 3
	AxisRStickY = 4
	AxisDPadX   = 6
	AxisDPadY   = 7
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type Joystick struct {
	device io.ReadCloser

	deviceEpoch    uint32
	wallclockEpoch time.Time
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
	// Init is set on the synthetic events the driver sends on open to report
	// the initial state of each control.
	Init bool
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

func NewJoystick(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open joystick %s", device)
	}
	return &Joystick{
		device: f,
	}, nil
}

func (j *Joystick) ReadEvent() (*Event, error) {
	var raw rawEvent
	err := binary.Read(j.device, binary.LittleEndian, &raw)
	if err != nil {
		return nil, err
	}

	if j.deviceEpoch == 0 {
		j.deviceEpoch = raw.Time
		j.wallclockEpoch = time.Now()
	}
	e := parseEvent(raw, j.deviceEpoch, j.wallclockEpoch)
	return &e, nil
}

func parseEvent(raw rawEvent, deviceEpoch uint32, wallclockEpoch time.Time) Event {
	return Event{
		Time:   wallclockEpoch.Add(time.Duration(raw.Time-deviceEpoch) * time.Millisecond),
		Value:  raw.Value,
		Type:   EventType(raw.Type &^ eventTypeInit),
		Number: raw.Number,
		Init:   raw.Type&eventTypeInit != 0,
	}
}

func (j *Joystick) Close() error {
	return j.device.Close()
}

// Command is an operator request to the odometry loop.
type Command int

const (
	CommandNone Command = iota
	CommandToggleEnabled
	CommandReset
	CommandDisableAndZero
)

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandToggleEnabled:
		return "toggle-enabled"
	case CommandReset:
		return "reset"
	case CommandDisableAndZero:
		return "disable-and-zero"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// CommandFor maps a button press to a command. Releases, axes and the
// initial-state events map to CommandNone.
func CommandFor(e *Event) Command {
	if e.Init || e.Type != EventTypeButton || e.Value != 1 {
		return CommandNone
	}
	switch e.Number {
	case ButtonOptions:
		return CommandToggleEnabled
	case ButtonShare:
		return CommandReset
	case ButtonSquare:
		return CommandDisableAndZero
	}
	return CommandNone
}

// LoopReadingCommands forwards commands from the joystick until ctx is done
// or the device fails. If the device can't be opened it logs and returns nil
// so the robot can run without a controller.
func LoopReadingCommands(ctx context.Context, device string, commands chan<- Command, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	j, err := NewJoystick(device)
	if err != nil {
		log.Info("No joystick, continuing without one", zap.Error(err))
		return nil
	}
	go func() {
		<-ctx.Done()
		_ = j.Close()
	}()
	return j.forwardCommands(ctx, commands, log)
}

func (j *Joystick) forwardCommands(ctx context.Context, commands chan<- Command, log *zap.Logger) error {
	for {
		e, err := j.ReadEvent()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read joystick event")
		}
		c := CommandFor(e)
		if c == CommandNone {
			continue
		}
		log.Debug("Joystick command", zap.Stringer("event", e), zap.Stringer("command", c))
		select {
		case commands <- c:
		case <-ctx.Done():
			return nil
		}
	}
}
