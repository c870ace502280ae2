package rack

import (
	"fmt"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/model"
)

// Connections lists the physical links touching ports of the devices in a
// rack as source device, source port, target device, target port rows.
// Links with a missing endpoint, or an endpoint that is not a port, are
// skipped and reported as warnings.
func (s *Service) Connections(rackID string) ([]model.RackConnection, []string, error) {
	if _, err := s.loadRack(rackID); err != nil {
		return nil, nil, err
	}
	devices, err := s.store.GetChildren(rackID)
	if err != nil {
		return nil, nil, err
	}

	// port id -> device in the rack
	owners := map[string]model.BusinessObject{}
	var ports []model.BusinessObject
	for _, d := range devices {
		below, err := s.portsOf(d.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range below {
			owners[p.ID] = d
		}
		ports = append(ports, below...)
	}

	seen := map[string]bool{}
	var rows []model.RackConnection
	var warnings []string
	for _, port := range ports {
		for _, rel := range []string{model.RelEndpointA, model.RelEndpointB} {
			links, err := s.store.GetSpecialAttribute(port.ID, rel, model.DirectionIncoming)
			if err != nil {
				return nil, nil, err
			}
			for _, link := range links {
				if seen[link.ID] || !s.classes.IsSubclassOf(link.ClassName, model.ClassGenericPhysicalLink) {
					continue
				}
				seen[link.ID] = true
				row, warning, err := s.connection(link, owners)
				if err != nil {
					return nil, nil, err
				}
				if warning != "" {
					log.Warn("Skipping rack connection", "rack", rackID, "link", link.ID, "reason", warning)
					warnings = append(warnings, warning)
					continue
				}
				rows = append(rows, row)
			}
		}
	}
	return rows, warnings, nil
}

func (s *Service) connection(link model.BusinessObject, owners map[string]model.BusinessObject) (model.RackConnection, string, error) {
	row := model.RackConnection{LinkID: link.ID, LinkName: link.Name}

	endA, err := s.store.GetSpecialAttribute(link.ID, model.RelEndpointA, model.DirectionOutgoing)
	if err != nil {
		return row, "", err
	}
	if len(endA) == 0 {
		return row, fmt.Sprintf("The endpointA was removed in the link %s", link), nil
	}
	endB, err := s.store.GetSpecialAttribute(link.ID, model.RelEndpointB, model.DirectionOutgoing)
	if err != nil {
		return row, "", err
	}
	if len(endB) == 0 {
		return row, fmt.Sprintf("The endpointB was removed in the link %s", link), nil
	}
	a, b := endA[0], endB[0]
	if !s.classes.IsSubclassOf(a.ClassName, model.ClassGenericPort) {
		return row, fmt.Sprintf("The endpointA in link %s is not a %s", link, model.ClassGenericPort), nil
	}
	if !s.classes.IsSubclassOf(b.ClassName, model.ClassGenericPort) {
		return row, fmt.Sprintf("The endpointB in link %s is not a %s", link, model.ClassGenericPort), nil
	}

	row.SourcePort, row.TargetPort = a.Name, b.Name
	row.SourceDevice, err = s.deviceName(a, owners)
	if err != nil {
		return row, "", err
	}
	row.TargetDevice, err = s.deviceName(b, owners)
	if err != nil {
		return row, "", err
	}
	return row, "", nil
}

// deviceName names the device owning a port. Ports outside the rack are
// named after their nearest communications element.
func (s *Service) deviceName(port model.BusinessObject, owners map[string]model.BusinessObject) (string, error) {
	if d, ok := owners[port.ID]; ok {
		return d.Name, nil
	}
	parents, err := s.store.GetParents(port.ID)
	if err != nil {
		return "", err
	}
	for _, p := range parents {
		if s.classes.IsSubclassOf(p.ClassName, model.ClassGenericCommunicationsElement) {
			return p.Name, nil
		}
	}
	if len(parents) > 0 {
		return parents[0].Name, nil
	}
	return "", nil
}

// portsOf returns every port below id
func (s *Service) portsOf(id string) ([]model.BusinessObject, error) {
	children, err := s.store.GetChildren(id)
	if err != nil {
		return nil, err
	}
	var ports []model.BusinessObject
	for _, c := range children {
		if s.classes.IsSubclassOf(c.ClassName, model.ClassGenericPort) {
			ports = append(ports, c)
		}
		below, err := s.portsOf(c.ID)
		if err != nil {
			return nil, err
		}
		ports = append(ports, below...)
	}
	return ports, nil
}
