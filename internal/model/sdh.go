package model

// SDHPosition is a single occupied timeslot on a transport or container link
type SDHPosition struct {
	LinkClass string `json:"link_class,omitempty"`
	LinkID    string `json:"link_id" validate:"required"`
	Position  int    `json:"position" validate:"min=1"`
}

// SDHContainerLinkDefinition is a container plus the positions it occupies
type SDHContainerLinkDefinition struct {
	Container  BusinessObject `json:"container"`
	Structured bool           `json:"structured"`
	Positions  []SDHPosition  `json:"positions"`
}

// SDHTributaryLinkDefinition is a tributary link plus the positions it occupies
type SDHTributaryLinkDefinition struct {
	Link      BusinessObject `json:"link"`
	Positions []SDHPosition  `json:"positions"`
}

// SDHSlot is a timeslot of a link as shown when choosing a position
type SDHSlot struct {
	Position  int    `json:"position"`
	Label     string `json:"label"`
	Container string `json:"container_id,omitempty"`
	Name      string `json:"container_name,omitempty"`
}

// Free reports whether no container occupies the slot
func (s SDHSlot) Free() bool {
	return s.Container == ""
}
