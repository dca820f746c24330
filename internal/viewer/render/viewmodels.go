// internal/viewer/render/viewmodels.go

package render

import (
	"fmt"
	"sort"
	"time"

	"github.com/dverbeek/panocast/internal/proto"
)

type BaseVM struct {
	Title       string
	Active      string
	SelfName    string
	SelfID      string
	Role        string
	ContentTmpl string
	BaseURL     string
	Debug       bool
}

type ConsoleVM struct {
	BaseVM
	State   proto.PlaybackState
	Library []proto.MediaItem
	Devices []DeviceRow
	Online  bool
}

type PlayerVM struct {
	BaseVM
	State   proto.PlaybackState
	Library []proto.MediaItem
}

type LogsVM struct {
	BaseVM
}

type DeviceRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	LastSeen string `json:"last_seen"`
	Battery  string `json:"battery"`
}

// BuildDeviceRows flattens the roster for templates and JSON, admin first,
// then by name.
func BuildDeviceRows(devices map[string]proto.DeviceRecord) []DeviceRow {
	rows := make([]DeviceRow, 0, len(devices))
	for _, rec := range devices {
		name := rec.DisplayName
		if name == "" {
			name = rec.ID
		}
		row := DeviceRow{
			ID:     rec.ID,
			Name:   name,
			Role:   string(rec.Role),
			Status: string(rec.Status),
		}
		if rec.LastSeenMillis > 0 {
			row.LastSeen = time.UnixMilli(rec.LastSeenMillis).Format(time.RFC3339)
		}
		if rec.BatteryLevel != nil {
			row.Battery = fmt.Sprintf("%d%%", *rec.BatteryLevel)
			if rec.BatteryCharging != nil && *rec.BatteryCharging {
				row.Battery += " ⚡"
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Role != rows[j].Role {
			return rows[i].Role == string(proto.RoleAdmin)
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}
