package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/martinsuchenak/invd/internal/model"
)

func formatObject(obj *model.BusinessObject, children []model.BusinessObject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nID: %s\n", obj, obj.ID)
	if obj.ParentID != "" {
		fmt.Fprintf(&b, "Parent: %s\n", obj.ParentID)
	}

	if len(obj.Attributes) > 0 {
		names := make([]string, 0, len(obj.Attributes))
		for name := range obj.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("Attributes:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %s\n", name, obj.Attributes[name])
		}
	}

	if len(children) > 0 {
		b.WriteString("Children:\n")
		for _, child := range children {
			fmt.Fprintf(&b, "  - %s (ID: %s)\n", child, child.ID)
		}
	}
	return b.String()
}

func formatLayout(layout *model.RackLayout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rack %s: %d units, %d used (%.1f%%)\n", layout.RackName, layout.RackUnits, layout.UsedUnits, layout.Usage)
	for _, d := range layout.Devices {
		fmt.Fprintf(&b, "  U%d (%d units): %s [%s]\n", d.Position, d.Units, d.Name, d.ClassName)
	}
	for _, w := range layout.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	return b.String()
}

func formatStructure(defs []model.SDHContainerLinkDefinition) string {
	if len(defs) == 0 {
		return "The link carries no containers"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d containers:\n", len(defs))
	for _, def := range defs {
		positions := make([]string, len(def.Positions))
		for i, p := range def.Positions {
			positions[i] = fmt.Sprint(p.Position)
		}
		structured := ""
		if def.Structured {
			structured = ", structured"
		}
		fmt.Fprintf(&b, "- %s at %s%s\n", def.Container, strings.Join(positions, ","), structured)
	}
	return b.String()
}
