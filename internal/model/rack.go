package model

// RackSlot is the occupancy of a single rack unit
type RackSlot struct {
	Unit     int    `json:"unit"`
	DeviceID string `json:"device_id,omitempty"`
}

// RackDevice is a device placed in a rack
type RackDevice struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClassName string `json:"class_name"`
	Position  int    `json:"position"`
	Units     int    `json:"units"`
	// DrawOffset is the zero-based row, from the top of the rack, where the
	// device's first unit is drawn.
	DrawOffset int `json:"draw_offset"`
}

// RackLayout is the computed view of a rack
type RackLayout struct {
	RackID     string       `json:"rack_id"`
	RackName   string       `json:"rack_name"`
	RackUnits  int          `json:"rack_units"`
	Descending bool         `json:"descending"`
	UsedUnits  int          `json:"used_units"`
	FreeUnits  int          `json:"free_units"`
	Usage      float64      `json:"usage_percent"`
	Devices    []RackDevice `json:"devices"`
	Slots      []RackSlot   `json:"slots"`
	Warnings   []string     `json:"warnings,omitempty"`
}

// RackConnection is one row of the rack connection table
type RackConnection struct {
	LinkID       string `json:"link_id"`
	LinkName     string `json:"link_name"`
	SourceDevice string `json:"source_device"`
	SourcePort   string `json:"source_port"`
	TargetDevice string `json:"target_device"`
	TargetPort   string `json:"target_port"`
}
