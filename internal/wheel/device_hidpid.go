//go:build !linux

package wheel

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	usbhid "rafaelmartins.com/p/usbhid"
)

// USB HID PID (Physical Interface Device) binding. The wheel exposes
// force feedback as PID-class reports; effect blocks live on the device
// and can be evicted, which is where ErrNotDownloaded comes from on
// this platform.

// Report IDs as exposed by the Sidewinder-family PID descriptor.
const (
	rptSetEffect       byte = 0x01 // output: block index, type, duration, direction
	rptSetConstant     byte = 0x02 // output: block index, level
	rptSetPeriodic     byte = 0x03 // output: block index, magnitude, phase, period, waveform
	rptSetRamp         byte = 0x04 // output: block index, start, end
	rptSetCondition    byte = 0x05 // output: block index, coefficients, saturation, deadband
	rptCreateEffect    byte = 0x09 // feature: effect type in, block allocation out
	rptBlockLoad       byte = 0x0A // feature: block index + load status
	rptEffectOperation byte = 0x0B // output: block index, op, loop count
	rptBlockFree       byte = 0x0C // output: block index
	rptDeviceControl   byte = 0x0D // output: control code
)

// PID effect type usages (HID usage table 0x0F).
const (
	etConstant   byte = 0x26
	etRamp       byte = 0x27
	etSquare     byte = 0x30
	etSine       byte = 0x31
	etTriangle   byte = 0x32
	etSawtoothUp byte = 0x33
	etSpring     byte = 0x40
	etDamper     byte = 0x41
	etInertia    byte = 0x42
	etFriction   byte = 0x43
)

// Effect operation and device control codes.
const (
	opStart       byte = 0x01
	opStop        byte = 0x03
	ctlEnable     byte = 0x01
	ctlDisable    byte = 0x02
	ctlStopAll    byte = 0x03
	ctlReset      byte = 0x04
	blockLoadOK   byte = 0x01
	blockLoadFull byte = 0x02
)

// pidDuration is the PID wire form of a duration: milliseconds, with
// 0xFFFF as the null value meaning "play until stopped".
func pidDuration(d time.Duration) uint16 {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0xFFFF
	}
	if ms >= 0xFFFF {
		ms = 0xFFFE
	}
	return uint16(ms)
}

func effectType(d Descriptor) (byte, error) {
	switch d.Kind {
	case KindConstant:
		return etConstant, nil
	case KindRamp:
		return etRamp, nil
	case KindPeriodic:
		switch d.Periodic.Waveform {
		case WaveSine:
			return etSine, nil
		case WaveSquare:
			return etSquare, nil
		case WaveTriangle:
			return etTriangle, nil
		case WaveSawtoothUp:
			return etSawtoothUp, nil
		}
		return 0, fmt.Errorf("unknown waveform %d", d.Periodic.Waveform)
	case KindCondition:
		switch d.Condition.Type {
		case CondSpring:
			return etSpring, nil
		case CondDamper:
			return etDamper, nil
		case CondInertia:
			return etInertia, nil
		case CondFriction:
			return etFriction, nil
		}
		return 0, fmt.Errorf("unknown condition type %d", d.Condition.Type)
	}
	return 0, fmt.Errorf("unknown effect kind %d", d.Kind)
}

type pidDevice struct {
	dev    *usbhid.Device
	log    *slog.Logger
	opened bool
	closed bool

	tel Telemetry
}

func openDevice(vendorID, productID uint16, log *slog.Logger) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.VendorId() == vendorID && dev.ProductId() == productID
	}, true, false)
	if err != nil {
		attached, probeErr := probeAttached(vendorID, productID)
		if probeErr == nil && attached {
			return nil, fmt.Errorf("%w (VID:0x%04X PID:0x%04X): attached via USB but HID open failed: %v",
				ErrNotFound, vendorID, productID, err)
		}
		return nil, fmt.Errorf("%w (VID:0x%04X PID:0x%04X): %v", ErrNotFound, vendorID, productID, err)
	}
	log.Info("force feedback device opened",
		slog.String("path", d.Path()),
		slog.String("product", d.Product()),
		slog.String("manufacturer", d.Manufacturer()))
	return &pidDevice{dev: d, log: log, opened: true}, nil
}

func (d *pidDevice) Acquire() error {
	if d.closed {
		return ErrLost
	}
	if err := d.control(ctlReset); err != nil {
		return err
	}
	return d.control(ctlEnable)
}

func (d *pidDevice) control(code byte) error {
	if err := d.dev.SetOutputReport(rptDeviceControl, []byte{code}); err != nil {
		return fmt.Errorf("%w: device control 0x%02X: %v", ErrLost, code, err)
	}
	return nil
}

func (d *pidDevice) CreateEffect(desc Descriptor) (Effect, error) {
	et, err := effectType(desc)
	if err != nil {
		return nil, fmt.Errorf("effect %q: %w", desc.Name, err)
	}
	if err := d.dev.SetFeatureReport(rptCreateEffect, []byte{et}); err != nil {
		return nil, fmt.Errorf("allocate effect %q: %w: %v", desc.Name, ErrLost, err)
	}
	load, err := d.dev.GetFeatureReport(rptBlockLoad)
	if err != nil {
		return nil, fmt.Errorf("block load for %q: %w: %v", desc.Name, ErrLost, err)
	}
	if len(load) < 2 || load[1] != blockLoadOK {
		if len(load) >= 2 && load[1] == blockLoadFull {
			return nil, fmt.Errorf("allocate effect %q: device effect memory full", desc.Name)
		}
		return nil, fmt.Errorf("allocate effect %q: block load rejected", desc.Name)
	}
	e := &pidEffect{dev: d, block: load[0], desc: desc}
	if err := e.Download(); err != nil {
		return nil, err
	}
	d.log.Debug("effect uploaded",
		slog.String("name", desc.Name),
		slog.String("kind", desc.Kind.String()),
		slog.Int("block", int(e.block)))
	return e, nil
}

func (d *pidDevice) Poll() (Telemetry, error) {
	_, data, err := d.dev.GetInputReport()
	if err != nil {
		return d.tel, fmt.Errorf("%w: input report: %v", ErrLost, err)
	}
	if len(data) < 10 {
		return d.tel, fmt.Errorf("short input report: %d bytes", len(data))
	}
	le := binary.LittleEndian
	d.tel = Telemetry{
		Steering: int16(le.Uint16(data[0:])),
		Throttle: int16(le.Uint16(data[2:])),
		Brake:    int16(le.Uint16(data[4:])),
		Buttons:  le.Uint32(data[6:]),
	}
	return d.tel, nil
}

func (d *pidDevice) Release() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.control(ctlDisable); err != nil {
		d.log.Warn("actuator disable failed", slog.Any("error", err))
	}
	return d.dev.Close()
}

type pidEffect struct {
	dev        *pidDevice
	block      byte
	desc       Descriptor
	downloaded bool
}

func (e *pidEffect) Start() error {
	if !e.downloaded {
		return fmt.Errorf("effect %q: %w", e.desc.Name, ErrNotDownloaded)
	}
	if err := e.dev.dev.SetOutputReport(rptEffectOperation, []byte{e.block, opStart, 1}); err != nil {
		e.downloaded = false
		return fmt.Errorf("start effect %q: %w: %v", e.desc.Name, ErrLost, err)
	}
	return nil
}

func (e *pidEffect) Stop() error {
	if err := e.dev.dev.SetOutputReport(rptEffectOperation, []byte{e.block, opStop, 0}); err != nil {
		return fmt.Errorf("stop effect %q: %w: %v", e.desc.Name, ErrLost, err)
	}
	return nil
}

func (e *pidEffect) Download() error {
	et, err := effectType(e.desc)
	if err != nil {
		return err
	}
	le := binary.LittleEndian
	hdr := make([]byte, 6)
	hdr[0] = e.block
	hdr[1] = et
	le.PutUint16(hdr[2:], pidDuration(e.desc.Duration))
	le.PutUint16(hdr[4:], e.desc.Direction)
	if err := e.dev.dev.SetOutputReport(rptSetEffect, hdr); err != nil {
		e.downloaded = false
		return fmt.Errorf("download effect %q: %w: %v", e.desc.Name, ErrLost, err)
	}
	if err := e.writeParams(); err != nil {
		e.downloaded = false
		return err
	}
	e.downloaded = true
	return nil
}

func (e *pidEffect) writeParams() error {
	le := binary.LittleEndian
	var (
		rid  byte
		body []byte
	)
	switch e.desc.Kind {
	case KindConstant:
		rid = rptSetConstant
		body = make([]byte, 3)
		body[0] = e.block
		le.PutUint16(body[1:], uint16(e.desc.Constant.Level))
	case KindPeriodic:
		rid = rptSetPeriodic
		body = make([]byte, 10)
		body[0] = e.block
		le.PutUint16(body[1:], uint16(e.desc.Periodic.Magnitude))
		le.PutUint16(body[3:], 0) // offset
		le.PutUint16(body[5:], e.desc.Periodic.Phase)
		le.PutUint16(body[7:], pidDuration(e.desc.Periodic.Period))
		wave, err := effectType(e.desc)
		if err != nil {
			return err
		}
		body[9] = wave
	case KindRamp:
		rid = rptSetRamp
		body = make([]byte, 5)
		body[0] = e.block
		le.PutUint16(body[1:], uint16(e.desc.Ramp.StartLevel))
		le.PutUint16(body[3:], uint16(e.desc.Ramp.EndLevel))
	case KindCondition:
		rid = rptSetCondition
		body = make([]byte, 7)
		body[0] = e.block
		le.PutUint16(body[1:], uint16(e.desc.Condition.Coefficient))
		le.PutUint16(body[3:], e.desc.Condition.Saturation)
		le.PutUint16(body[5:], e.desc.Condition.Deadband)
	default:
		return fmt.Errorf("unknown effect kind %d", e.desc.Kind)
	}
	if err := e.dev.dev.SetOutputReport(rid, body); err != nil {
		return fmt.Errorf("effect %q parameters: %w: %v", e.desc.Name, ErrLost, err)
	}
	return nil
}

func (e *pidEffect) SetLevel(level int16) error {
	switch e.desc.Kind {
	case KindConstant:
		e.desc.Constant.Level = level
	case KindPeriodic:
		e.desc.Periodic.Magnitude = level
	default:
		return fmt.Errorf("%w for %s effect %q", ErrUnsupported, e.desc.Kind, e.desc.Name)
	}
	return e.writeParams()
}

func (e *pidEffect) Destroy() error {
	if err := e.dev.dev.SetOutputReport(rptBlockFree, []byte{e.block}); err != nil {
		return fmt.Errorf("free effect %q: %w: %v", e.desc.Name, ErrLost, err)
	}
	e.downloaded = false
	return nil
}
