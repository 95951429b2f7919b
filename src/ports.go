package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	List serial ports that might have a monitor on them.
 *
 * Description:	Walks the udev tty subsystem.  Only devices that have
 *		a parent bus (USB, Bluetooth, platform UART) are kept;
 *		the dozens of virtual consoles are not interesting.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jochenvg/go-udev"
)

type SerialPortInfo struct {
	Device string // /dev/ttyUSB0 etc.
	Vendor string
	Model  string
	Serial string
	Bus    string // usb, bluetooth, platform...
}

func (p SerialPortInfo) String() string {
	var desc = strings.TrimSpace(p.Vendor + " " + p.Model)
	if desc == "" {
		return p.Device
	}
	return fmt.Sprintf("%s  (%s)", p.Device, desc)
}

// ListSerialPorts returns likely ports, sorted by device name.
func ListSerialPorts() ([]SerialPortInfo, error) {
	var u udev.Udev
	var e = u.NewEnumerate()

	if err := e.AddMatchSubsystem("tty"); err != nil {
		return nil, fmt.Errorf("udev: %w", err)
	}
	if err := e.AddMatchIsInitialized(); err != nil {
		return nil, fmt.Errorf("udev: %w", err)
	}

	var devices, err = e.Devices()
	if err != nil {
		return nil, fmt.Errorf("udev enumerate tty: %w", err)
	}

	var ports []SerialPortInfo
	for _, d := range devices {
		var node = d.Devnode()
		if node == "" {
			continue
		}

		var bus = d.PropertyValue("ID_BUS")
		if bus == "" && d.Parent() == nil {
			continue
		}
		if bus == "" {
			bus = d.Parent().Subsystem()
		}
		if bus == "" {
			continue
		}

		ports = append(ports, SerialPortInfo{
			Device: node,
			Vendor: firstNonEmpty(d.PropertyValue("ID_VENDOR_FROM_DATABASE"), d.PropertyValue("ID_VENDOR")),
			Model:  firstNonEmpty(d.PropertyValue("ID_MODEL_FROM_DATABASE"), d.PropertyValue("ID_MODEL")),
			Serial: d.PropertyValue("ID_SERIAL_SHORT"),
			Bus:    bus,
		})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Device < ports[j].Device })
	return ports, nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
