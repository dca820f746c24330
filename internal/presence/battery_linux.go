//go:build linux

package presence

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const powerSupplyDir = "/sys/class/power_supply"

// readBattery reads the first battery exposed through sysfs. Desktop hosts
// with no battery return an error, which disables telemetry for the session.
func readBattery() (level int, charging bool, err error) {
	entries, err := os.ReadDir(powerSupplyDir)
	if err != nil {
		return 0, false, err
	}

	for _, e := range entries {
		dir := filepath.Join(powerSupplyDir, e.Name())

		typ, err := readSysfs(filepath.Join(dir, "type"))
		if err != nil || typ != "Battery" {
			continue
		}

		capStr, err := readSysfs(filepath.Join(dir, "capacity"))
		if err != nil {
			continue
		}
		level, err = strconv.Atoi(capStr)
		if err != nil {
			continue
		}

		status, _ := readSysfs(filepath.Join(dir, "status"))
		charging = status == "Charging" || status == "Full"
		return level, charging, nil
	}

	return 0, false, errors.New("no battery under " + powerSupplyDir)
}

func readSysfs(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
