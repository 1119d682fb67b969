package serial

import (
	"fmt"
	"sort"
	"strings"

	bugst "go.bug.st/serial"
)

// List returns the serial devices present on this machine, USB CDC
// devices first since that is how the boards enumerate
func List() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	SortPorts(ports)
	return ports, nil
}

// SortPorts orders device names so likely boards come first
func SortPorts(ports []string) {
	sort.SliceStable(ports, func(i, j int) bool {
		ri, rj := portRank(ports[i]), portRank(ports[j])
		if ri != rj {
			return ri < rj
		}
		return ports[i] < ports[j]
	})
}

func portRank(name string) int {
	switch {
	case strings.Contains(name, "ttyACM"), strings.Contains(name, "usbmodem"):
		return 0
	case strings.Contains(name, "ttyUSB"), strings.Contains(name, "usbserial"):
		return 1
	default:
		return 2
	}
}
