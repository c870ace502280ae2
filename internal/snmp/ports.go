package snmp

import (
	"regexp"
	"strings"
)

var (
	punctuation = regexp.MustCompile(`[-._:,]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SamePort reports whether an inventory port and a polled port are the same
// physical port. Names are the only common ground on a first synchronization,
// so vendor spellings of the interface type are folded together:
// ge0/9 and GigabitEthernet0/9 or te0/0/1 and TenGigE0/0/1.
func SamePort(oldName, oldClass, newName, newClass string) bool {
	if oldClass != newClass {
		return false
	}
	oldName = strings.ToLower(strings.TrimSpace(oldName))
	newName = strings.ToLower(strings.TrimSpace(newName))
	if oldName == newName {
		return true
	}
	if !strings.Contains(oldName, "/") && !strings.Contains(newName, "/") {
		return strings.Contains(newName, strings.TrimSpace(strings.ReplaceAll(oldName, "port", "")))
	}

	oldParts := strings.Split(oldName, "/")
	newParts := strings.Split(newName, "/")
	if len(oldParts) != len(newParts) {
		return false
	}
	for i := 1; i < len(oldParts); i++ {
		if oldParts[i] != newParts[i] {
			return false
		}
	}

	oldType := punctuation.ReplaceAllString(oldParts[0], "")
	newType := punctuation.ReplaceAllString(newParts[0], "")
	if oldType == newType {
		return true
	}
	newType = foldInterfaceType(newType)
	return whitespace.ReplaceAllString(oldType, "") == whitespace.ReplaceAllString(newType, "")
}

// foldInterfaceType shortens the long form of an interface type prefix,
// keeping the slot number glued to it.
func foldInterfaceType(t string) string {
	switch {
	case strings.Contains(t, "tentigt"):
		return strings.Replace(t, "tentigt", "tt", 1)
	case strings.Contains(t, "tengige"):
		return strings.Replace(t, "tengige", "te", 1)
	case strings.Contains(t, "fastethernet"):
		return strings.Replace(t, "fastethernet", "fa", 1)
	case strings.Contains(t, "gigabitethernet"):
		return strings.Replace(t, "gigabitethernet", "ge", 1)
	case strings.Contains(t, "mgmteth"):
		return strings.Replace(t, "mgmteth", "mg", 1)
	case strings.Contains(t, "gi") && len(t) < 4:
		return strings.Replace(t, "gi", "ge", 1)
	case strings.Contains(t, "tengi"):
		return strings.Replace(t, "tengi", "te", 1)
	}
	return t
}
