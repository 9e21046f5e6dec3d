package evdev

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DeviceInfo is one entry of /proc/bus/input/devices.
type DeviceInfo struct {
	Name     string
	Phys     string
	Handlers []string
	EvBits   uint64
}

// IsKeyboard reports whether the device reports key, repeat and
// misc events and has an event handler bound, the way udev tags keyboards.
func (d DeviceInfo) IsKeyboard() bool {
	const want = 1<<EvKey | 1<<0x14 | 1<<EvMsc
	return d.EvBits&want == want && d.EventNode() != ""
}

// EventNode returns the /dev/input path of the device's event handler.
func (d DeviceInfo) EventNode() string {
	for _, h := range d.Handlers {
		if strings.HasPrefix(h, "event") {
			return filepath.Join("/dev/input", h)
		}
	}
	return ""
}

// ParseDevices reads the /proc/bus/input/devices format.
func ParseDevices(r io.Reader) ([]DeviceInfo, error) {
	var (
		out []DeviceInfo
		cur *DeviceInfo
	)
	flush := func() {
		if cur != nil && (cur.Name != "" || len(cur.Handlers) > 0) {
			out = append(out, *cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		if cur == nil {
			cur = &DeviceInfo{}
		}
		if len(line) < 3 || line[1] != ':' {
			continue
		}
		body := strings.TrimSpace(line[2:])
		switch line[0] {
		case 'N':
			cur.Name = strings.Trim(strings.TrimPrefix(body, "Name="), `"`)
		case 'P':
			cur.Phys = strings.TrimPrefix(body, "Phys=")
		case 'H':
			cur.Handlers = strings.Fields(strings.TrimPrefix(body, "Handlers="))
		case 'B':
			if v, ok := strings.CutPrefix(body, "EV="); ok {
				bits, err := strconv.ParseUint(v, 16, 64)
				if err == nil {
					cur.EvBits = bits
				}
			}
		}
	}
	flush()
	return out, sc.Err()
}

// Keyboards lists the keyboards the kernel knows about.
func Keyboards() ([]DeviceInfo, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := ParseDevices(f)
	if err != nil {
		return nil, err
	}
	var kbds []DeviceInfo
	for _, d := range all {
		if d.IsKeyboard() {
			kbds = append(kbds, d)
		}
	}
	return kbds, nil
}
