//go:build !linux

package presence

import "errors"

// readBattery has no portable implementation outside linux sysfs; telemetry
// is simply absent on other platforms.
func readBattery() (level int, charging bool, err error) {
	return 0, false, errors.New("battery telemetry not supported on this platform")
}
