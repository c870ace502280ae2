package model

// Class names the domain logic depends on
const (
	ClassInventoryObject              = "InventoryObject"
	ClassGenericCommunicationsElement = "GenericCommunicationsElement"
	ClassGenericPort                  = "GenericPort"
	ClassGenericPhysicalLink          = "GenericPhysicalLink"
	ClassRack                         = "Rack"
	ClassOpticalPort                  = "OpticalPort"
	ClassElectricalPort               = "ElectricalPort"
	ClassPowerPort                    = "PowerPort"
	ClassUSBPort                      = "USBPort"
	ClassSlot                         = "Slot"
	ClassTransceiver                  = "Transceiver"
	ClassIPBoard                      = "IPBoard"
	ClassHybridBoard                  = "HybridBoard"
	ClassSwitchProcessor              = "SwitchProcessor"
)

// Physical link endpoint relationships
const (
	RelEndpointA = "endpointA"
	RelEndpointB = "endpointB"
)
