//go:build linux

package evdev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl requests from linux/input.h.
const (
	eviocgrab    = 0x40044590 // _IOW('E', 0x90, int)
	eviocgrep    = 0x80084503 // _IOR('E', 0x03, unsigned int[2])
	eviocsrep    = 0x40084503 // _IOW('E', 0x03, unsigned int[2])
	eviocgnameLn = 256
)

// eviocgname is EVIOCGNAME(len): _IOC(_IOC_READ, 'E', 0x06, len).
func eviocgname(n uintptr) uintptr {
	return 2<<30 | n<<16 | 'E'<<8 | 0x06
}

// Device is an open evdev node.
type Device struct {
	f       *os.File
	path    string
	name    string
	grabbed bool
}

// Open opens an event device for reading. Reading /dev/input usually
// needs root or membership of the input group.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open input device: %w", err)
	}
	d := &Device{f: f, path: path}
	d.name, _ = d.readName()
	return d, nil
}

func (d *Device) readName() (string, error) {
	buf := make([]byte, eviocgnameLn)
	err := d.control(func(fd uintptr) error {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, eviocgname(uintptr(len(buf))), uintptr(unsafe.Pointer(&buf[0])))
		if errno != 0 {
			return errno
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

// control runs fn with the raw descriptor.
func (d *Device) control(fn func(fd uintptr) error) error {
	raw, err := d.f.SyscallConn()
	if err != nil {
		return err
	}
	var inner error
	if err := raw.Control(func(fd uintptr) { inner = fn(fd) }); err != nil {
		return err
	}
	return inner
}

// Path returns the device node path.
func (d *Device) Path() string { return d.path }

// Name returns the name the kernel reports for the device.
func (d *Device) Name() string { return d.name }

// Grab takes exclusive access so keys stop reaching other clients.
func (d *Device) Grab() error {
	return d.setGrab(1)
}

// Release gives up exclusive access.
func (d *Device) Release() error {
	return d.setGrab(0)
}

func (d *Device) setGrab(v int) error {
	err := d.control(func(fd uintptr) error {
		return unix.IoctlSetInt(int(fd), eviocgrab, v)
	})
	if err != nil {
		return fmt.Errorf("EVIOCGRAB: %w", err)
	}
	d.grabbed = v != 0
	return nil
}

// Repeat returns the device's autorepeat setting.
func (d *Device) Repeat() (Repeat, error) {
	var v [2]uint32
	if err := d.repeatIoctl(eviocgrep, &v); err != nil {
		return Repeat{}, fmt.Errorf("EVIOCGREP: %w", err)
	}
	return repeatFromValues(v), nil
}

// SetRepeat changes the device's autorepeat. The setting is global to the
// device and outlives this descriptor.
func (d *Device) SetRepeat(r Repeat) error {
	v := r.values()
	if err := d.repeatIoctl(eviocsrep, &v); err != nil {
		return fmt.Errorf("EVIOCSREP: %w", err)
	}
	return nil
}

func (d *Device) repeatIoctl(req uintptr, v *[2]uint32) error {
	return d.control(func(fd uintptr) error {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(unsafe.Pointer(v)))
		if errno != 0 {
			return errno
		}
		return nil
	})
}

// ReadEvents delivers events to fn until ctx is done, the device goes away
// or fn returns an error. Cancelling ctx closes the device.
func (d *Device) ReadEvents(ctx context.Context, fn func(InputEvent) error) error {
	stop := context.AfterFunc(ctx, func() { _ = d.f.Close() })
	defer stop()

	buf := make([]byte, EventSize*64)
	for {
		n, err := d.f.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read input device: %w", err)
		}
		events, err := DecodeAll(buf[:n-n%EventSize])
		if err != nil {
			return err
		}
		for _, ev := range events {
			if err := fn(ev); err != nil {
				return err
			}
		}
	}
}

// Close releases a grab and closes the device.
func (d *Device) Close() error {
	if d.grabbed {
		_ = d.Release()
	}
	err := d.f.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
