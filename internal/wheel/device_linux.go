//go:build linux

package wheel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// evdev event types and codes used by the binding.
const (
	evKey = 0x01
	evAbs = 0x03
	evFF  = 0x15

	absX = 0x00
	absY = 0x01
	absZ = 0x02

	btnJoystick = 0x120
	buttonCount = 32

	ffConstant = 0x52
	ffSpring   = 0x53
	ffFriction = 0x54
	ffDamper   = 0x55
	ffInertia  = 0x56
	ffRamp     = 0x57
	ffPeriodic = 0x51

	ffSquare   = 0x58
	ffTriangle = 0x59
	ffSine     = 0x5a
	ffSawUp    = 0x5b

	ffAutocenter = 0x61
	ffMax        = 0x7f
)

// ioctl request encoding, dir<<30 | size<<16 | type<<8 | nr.
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | 'E'<<8 | nr
}

var (
	eviocGID      = ioc(iocRead, 0x02, 8)   // struct input_id
	eviocGEffects = ioc(iocRead, 0x84, 4)   // int
	eviocSFF      = ioc(iocWrite, 0x80, 48) // struct ff_effect
	eviocRMFF     = ioc(iocWrite, 0x81, 4)  // int
	eviocGrab     = ioc(iocWrite, 0x90, 4)  // int
)

func eviocGName(n uintptr) uintptr    { return ioc(iocRead, 0x06, n) }
func eviocGBit(ev, n uintptr) uintptr { return ioc(iocRead, 0x20+ev, n) }

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// ffEffect mirrors struct ff_effect. The kind-specific union starts at
// byte 16 (4-byte aligned because ff_periodic_effect carries a u32) and
// the kernel always copies the full 48 bytes, so the union is carried
// as a fixed buffer rather than per-kind structs.
type ffEffect struct {
	Type            uint16
	ID              int16
	Direction       uint16
	TriggerButton   uint16
	TriggerInterval uint16
	ReplayLength    uint16
	ReplayDelay     uint16
	_               [2]byte
	U               [32]byte
}

const inputEventSize = 24 // struct timeval + type + code + value on 64-bit

func durationMillis(d time.Duration) uint16 {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0 // 0 plays until stopped
	}
	if ms > 0x7fff {
		ms = 0x7fff
	}
	return uint16(ms)
}

func encodeEffect(d Descriptor, id int16) (ffEffect, error) {
	e := ffEffect{
		ID:           id,
		Direction:    d.Direction,
		ReplayLength: durationMillis(d.Duration),
	}
	le := binary.LittleEndian
	switch d.Kind {
	case KindConstant:
		e.Type = ffConstant
		le.PutUint16(e.U[0:], uint16(d.Constant.Level))
	case KindPeriodic:
		e.Type = ffPeriodic
		var wave uint16
		switch d.Periodic.Waveform {
		case WaveSine:
			wave = ffSine
		case WaveSquare:
			wave = ffSquare
		case WaveTriangle:
			wave = ffTriangle
		case WaveSawtoothUp:
			wave = ffSawUp
		default:
			return e, fmt.Errorf("unknown waveform %d", d.Periodic.Waveform)
		}
		le.PutUint16(e.U[0:], wave)
		le.PutUint16(e.U[2:], durationMillis(d.Periodic.Period))
		le.PutUint16(e.U[4:], uint16(d.Periodic.Magnitude))
		// offset at 6 stays 0
		le.PutUint16(e.U[8:], d.Periodic.Phase)
	case KindRamp:
		e.Type = ffRamp
		le.PutUint16(e.U[0:], uint16(d.Ramp.StartLevel))
		le.PutUint16(e.U[2:], uint16(d.Ramp.EndLevel))
	case KindCondition:
		switch d.Condition.Type {
		case CondSpring:
			e.Type = ffSpring
		case CondDamper:
			e.Type = ffDamper
		case CondInertia:
			e.Type = ffInertia
		case CondFriction:
			e.Type = ffFriction
		default:
			return e, fmt.Errorf("unknown condition type %d", d.Condition.Type)
		}
		// One block per axis; the wheel has a single FF axis so both
		// blocks carry the same coefficients.
		for _, off := range []int{0, 12} {
			le.PutUint16(e.U[off+0:], d.Condition.Saturation)
			le.PutUint16(e.U[off+2:], d.Condition.Saturation)
			le.PutUint16(e.U[off+4:], uint16(d.Condition.Coefficient))
			le.PutUint16(e.U[off+6:], uint16(d.Condition.Coefficient))
			le.PutUint16(e.U[off+8:], d.Condition.Deadband)
		}
	default:
		return e, fmt.Errorf("unknown effect kind %d", d.Kind)
	}
	return e, nil
}

// mapErrno folds raw errnos into the contract errors. A vanished or
// revoked device node means the claim is gone.
func mapErrno(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO), errors.Is(err, unix.EIO):
		return fmt.Errorf("%w: %v", ErrLost, err)
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("%w: %v", ErrBusy, err)
	default:
		return err
	}
}

type evdevDevice struct {
	fd      int
	path    string
	name    string
	log     *slog.Logger
	grabbed bool
	closed  bool

	// telemetry accumulated from the event stream; the session layer
	// serializes Poll calls, so no lock here.
	tel Telemetry
}

// openDevice scans /dev/input for an event node matching the identity
// and carrying at least one force-feedback capability bit.
func openDevice(vendorID, productID uint16, log *slog.Logger) (Device, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("scan /dev/input: %w", err)
	}
	for _, path := range paths {
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
		if err != nil {
			log.Debug("skipping event node", slog.String("path", path), slog.Any("error", err))
			continue
		}

		var id struct{ Bustype, Vendor, Product, Version uint16 }
		if err := ioctl(fd, eviocGID, unsafe.Pointer(&id)); err != nil {
			unix.Close(fd)
			continue
		}
		if id.Vendor != vendorID || id.Product != productID {
			unix.Close(fd)
			continue
		}

		var ffBits [ffMax/8 + 1]byte
		if err := ioctl(fd, eviocGBit(evFF, uintptr(len(ffBits))), unsafe.Pointer(&ffBits[0])); err != nil {
			log.Warn("force feedback capability query failed", slog.String("path", path), slog.Any("error", err))
			unix.Close(fd)
			continue
		}
		hasFF := false
		for _, b := range ffBits {
			if b != 0 {
				hasFF = true
				break
			}
		}
		if !hasFF {
			log.Warn("device matches identity but has no force feedback", slog.String("path", path))
			unix.Close(fd)
			continue
		}

		var nameBuf [256]byte
		_ = ioctl(fd, eviocGName(uintptr(len(nameBuf))), unsafe.Pointer(&nameBuf[0]))
		name := string(nameBuf[:])
		if i := indexByte(nameBuf[:], 0); i >= 0 {
			name = string(nameBuf[:i])
		}

		var slots int32
		if err := ioctl(fd, eviocGEffects, unsafe.Pointer(&slots)); err == nil {
			log.Info("force feedback device opened",
				slog.String("path", path),
				slog.String("name", name),
				slog.Int("effect_slots", int(slots)))
		}

		return &evdevDevice{fd: fd, path: path, name: name, log: log}, nil
	}

	// No usable event node. Check the USB bus so the failure message
	// distinguishes "unplugged" from "plugged in but inaccessible".
	attached, probeErr := probeAttached(vendorID, productID)
	if probeErr != nil {
		return nil, fmt.Errorf("%w (VID:0x%04X PID:0x%04X); usb probe failed: %v",
			ErrNotFound, vendorID, productID, probeErr)
	}
	if attached {
		return nil, fmt.Errorf("%w (VID:0x%04X PID:0x%04X): attached via USB but no accessible event node (check /dev/input permissions)",
			ErrNotFound, vendorID, productID)
	}
	return nil, fmt.Errorf("%w (VID:0x%04X PID:0x%04X): not attached", ErrNotFound, vendorID, productID)
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func (d *evdevDevice) Acquire() error {
	if d.closed {
		return ErrLost
	}
	if d.grabbed {
		return nil
	}
	grab := int32(1)
	if err := ioctl(d.fd, eviocGrab, unsafe.Pointer(&grab)); err != nil {
		return fmt.Errorf("grab %s: %w", d.path, mapErrno(err))
	}
	d.grabbed = true

	// Take over centering for the duration of the session.
	if err := d.writeEvent(evFF, ffAutocenter, 0); err != nil {
		d.log.Warn("autocenter disable failed", slog.Any("error", err))
	}
	return nil
}

func (d *evdevDevice) CreateEffect(desc Descriptor) (Effect, error) {
	e, err := encodeEffect(desc, -1) // -1: kernel assigns the slot
	if err != nil {
		return nil, fmt.Errorf("effect %q: %w", desc.Name, err)
	}
	if err := ioctl(d.fd, eviocSFF, unsafe.Pointer(&e)); err != nil {
		return nil, fmt.Errorf("upload effect %q: %w", desc.Name, mapErrno(err))
	}
	d.log.Debug("effect uploaded",
		slog.String("name", desc.Name),
		slog.String("kind", desc.Kind.String()),
		slog.Int("id", int(e.ID)))
	return &evdevEffect{dev: d, id: e.ID, desc: desc}, nil
}

func (d *evdevDevice) Poll() (Telemetry, error) {
	buf := make([]byte, inputEventSize*32)
	for {
		n, err := unix.Read(d.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return d.tel, nil // drained, hand back the latest state
			}
			return d.tel, fmt.Errorf("read %s: %w", d.path, mapErrno(err))
		}
		if n < inputEventSize {
			return d.tel, nil
		}
		for off := 0; off+inputEventSize <= n; off += inputEventSize {
			typ := binary.LittleEndian.Uint16(buf[off+16:])
			code := binary.LittleEndian.Uint16(buf[off+18:])
			value := int32(binary.LittleEndian.Uint32(buf[off+20:]))
			d.apply(typ, code, value)
		}
	}
}

func (d *evdevDevice) apply(typ, code uint16, value int32) {
	switch typ {
	case evAbs:
		switch code {
		case absX:
			d.tel.Steering = int16(value)
		case absY:
			d.tel.Throttle = int16(value)
		case absZ:
			d.tel.Brake = int16(value)
		}
	case evKey:
		if code >= btnJoystick && code < btnJoystick+buttonCount {
			bit := uint32(1) << (code - btnJoystick)
			if value != 0 {
				d.tel.Buttons |= bit
			} else {
				d.tel.Buttons &^= bit
			}
		}
	}
}

func (d *evdevDevice) Release() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.grabbed {
		// Hand centering back to the driver before letting go.
		if err := d.writeEvent(evFF, ffAutocenter, 0xFFFF); err != nil {
			d.log.Warn("autocenter restore failed", slog.Any("error", err))
		}
		grab := int32(0)
		if err := ioctl(d.fd, eviocGrab, unsafe.Pointer(&grab)); err != nil {
			d.log.Warn("ungrab failed", slog.Any("error", err))
		}
		d.grabbed = false
	}
	return unix.Close(d.fd)
}

func (d *evdevDevice) writeEvent(typ, code uint16, value int32) error {
	var buf [inputEventSize]byte
	binary.LittleEndian.PutUint16(buf[16:], typ)
	binary.LittleEndian.PutUint16(buf[18:], code)
	binary.LittleEndian.PutUint32(buf[20:], uint32(value))
	n, err := unix.Write(d.fd, buf[:])
	if err != nil {
		return mapErrno(err)
	}
	if n != inputEventSize {
		return fmt.Errorf("short event write: %d of %d bytes", n, inputEventSize)
	}
	return nil
}

type evdevEffect struct {
	dev  *evdevDevice
	id   int16
	desc Descriptor
}

func (e *evdevEffect) Start() error {
	if err := e.dev.writeEvent(evFF, uint16(e.id), 1); err != nil {
		return fmt.Errorf("start effect %q: %w", e.desc.Name, err)
	}
	return nil
}

func (e *evdevEffect) Stop() error {
	if err := e.dev.writeEvent(evFF, uint16(e.id), 0); err != nil {
		return fmt.Errorf("stop effect %q: %w", e.desc.Name, err)
	}
	return nil
}

// Download re-uploads the effect into its existing kernel slot. evdev
// has no separate download step, so this doubles as the live update
// path used by SetLevel.
func (e *evdevEffect) Download() error {
	eff, err := encodeEffect(e.desc, e.id)
	if err != nil {
		return err
	}
	if err := ioctl(e.dev.fd, eviocSFF, unsafe.Pointer(&eff)); err != nil {
		return fmt.Errorf("download effect %q: %w", e.desc.Name, mapErrno(err))
	}
	return nil
}

func (e *evdevEffect) SetLevel(level int16) error {
	switch e.desc.Kind {
	case KindConstant:
		e.desc.Constant.Level = level
	case KindPeriodic:
		e.desc.Periodic.Magnitude = level
	default:
		return fmt.Errorf("%w for %s effect %q", ErrUnsupported, e.desc.Kind, e.desc.Name)
	}
	return e.Download()
}

func (e *evdevEffect) Destroy() error {
	id := int32(e.id)
	if err := ioctl(e.dev.fd, eviocRMFF, unsafe.Pointer(&id)); err != nil {
		return fmt.Errorf("destroy effect %q: %w", e.desc.Name, mapErrno(err))
	}
	return nil
}
