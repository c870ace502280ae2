package snmp

import (
	"context"
	"errors"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsuchenak/invd/internal/model"
)

func TestParseClass(t *testing.T) {
	tests := []struct {
		name        string
		deviceModel string
		class       int
		entity      string
		descr       string
		want        string
	}{
		{"chassis", "", ClassChassis, "CISCO7606", "Cisco 7606 chassis", "Router"},
		{"chassis without descr", "", ClassChassis, "CISCO7606", "", ""},
		{"catalyst 2960 port", "WS-C2960-24", ClassPort, "Gi0/1", "Gigabit port", model.ClassElectricalPort},
		{"usb", "", ClassPort, "usb0", "USB port", model.ClassUSBPort},
		{"fast ethernet name", "", ClassPort, "FastEthernet0/1", "port", model.ClassElectricalPort},
		{"management", "", ClassPort, "MgmtEth0/RSP0/CPU0/0", "port", model.ClassElectricalPort},
		{"plain ethernet descr", "", ClassPort, "Eth1", "10/100 Ethernet", model.ClassElectricalPort},
		{"gigabit is optical", "", ClassPort, "Gi0/1", "Gigabit Ethernet Port", model.ClassOpticalPort},
		{"port without descr", "", ClassPort, "Gi0/1", "", ""},
		{"container", "", ClassContainer, "slot 1", "Slot container", model.ClassSlot},
		{"disk container", "", ClassContainer, "disk0", "Disk container", ""},
		{"power supply", "", ClassPowerSupply, "Power Supply 1", "AC", model.ClassPowerPort},
		{"power in descr", "", ClassPowerSupply, "PS0", "AC power supply", model.ClassPowerPort},
		{"power module", "", ClassPowerSupply, "Module 0", "Line module", model.ClassHybridBoard},
		{"sfp", "", ClassModule, "Gi0/1 module", "1000BaseSX SFP", model.ClassTransceiver},
		{"deep name", "", ClassModule, "0/0/CPU0/1", "", model.ClassTransceiver},
		{"spa is a board", "", ClassModule, "SPA 0/1", "SFP SPA", model.ClassIPBoard},
		{"line card", "", ClassModule, "module 1", "IP line card", model.ClassIPBoard},
		{"switch processor", "", ClassOther, "SP", "switch processor", model.ClassSwitchProcessor},
		{"sensor", "", 8, "temp", "sensor", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseClass("Router", tt.deviceModel, tt.class, tt.entity, tt.descr))
		})
	}
}

func TestIsClassUsed(t *testing.T) {
	assert.True(t, IsClassUsed(ClassChassis, ""))
	assert.True(t, IsClassUsed(ClassPort, ""))
	assert.True(t, IsClassUsed(ClassContainer, "slot"))
	assert.False(t, IsClassUsed(ClassContainer, " Disk 0 "))
	assert.True(t, IsClassUsed(ClassOther, "Switch Processor"))
	assert.False(t, IsClassUsed(ClassOther, "backplane"))
	assert.False(t, IsClassUsed(7, "fan"))
}

func TestTree(t *testing.T) {
	table := sampleTable()
	root, err := table.InitialID()
	require.NoError(t, err)
	assert.Equal(t, "0", root)

	tree := table.Tree(root)
	assert.Equal(t, []string{"1"}, tree["0"])
	assert.Equal(t, []string{"2", "6"}, tree["1"], "the fan is not used")
	assert.Equal(t, []string{"4", "5"}, tree["3"])
	assert.NotContains(t, tree, "5", "leaves have no entry")

	_, err = (&EntityTable{Rows: []Entity{{Index: "2", Class: ClassPort}}}).InitialID()
	assert.ErrorIs(t, err, ErrNoChassis)
}

func TestEntityAttributes(t *testing.T) {
	e := Entity{Name: "GigabitEthernet0/1", Descr: " SFP port ", MfgName: "Cisco", SerialNum: ""}
	assert.Equal(t, map[string]string{
		model.AttrName:        "Gi0/1",
		model.AttrDescription: "SFP port",
		model.AttrVendor:      "Cisco",
	}, e.Attributes())
}

type fakeWalker struct {
	pdus map[string][]gosnmp.SnmpPDU
	bulk bool
}

func (w *fakeWalker) WalkAll(oid string) ([]gosnmp.SnmpPDU, error) {
	return w.pdus[oid], nil
}

func (w *fakeWalker) BulkWalkAll(oid string) ([]gosnmp.SnmpPDU, error) {
	w.bulk = true
	return w.pdus[oid], nil
}

func TestPoll(t *testing.T) {
	w := &fakeWalker{pdus: map[string][]gosnmp.SnmpPDU{
		colDescr: {
			{Name: "." + colDescr + ".1", Type: gosnmp.OctetString, Value: []byte("Cisco chassis")},
			{Name: "." + colDescr + ".2", Type: gosnmp.OctetString, Value: []byte("Gigabit port ")},
		},
		colContainedIn: {
			{Name: "." + colContainedIn + ".1", Type: gosnmp.Integer, Value: 0},
			{Name: "." + colContainedIn + ".2", Type: gosnmp.Integer, Value: 1},
		},
		colClass: {
			{Name: "." + colClass + ".1", Type: gosnmp.Integer, Value: ClassChassis},
			{Name: "." + colClass + ".2", Type: gosnmp.Integer, Value: ClassPort},
		},
		colName: {
			{Name: "." + colName + ".2", Type: gosnmp.OctetString, Value: []byte("Gi0/1")},
			{Name: ".1.3.6.1.2.1.1.5.0", Type: gosnmp.OctetString, Value: []byte("outside the column")},
		},
	}}

	p := NewPoller(Settings{Community: "public", Version: "2c"})
	var community string
	p.dial = func(_ context.Context, _, c string) (walker, func(), error) {
		community = c
		return w, func() {}, nil
	}

	table, err := p.Poll(context.Background(), "192.0.2.1", "")
	require.NoError(t, err)
	assert.Equal(t, "public", community)
	assert.True(t, w.bulk)
	require.Len(t, table.Rows, 2)

	port, ok := table.Row("2")
	require.True(t, ok)
	assert.Equal(t, "Gigabit port", port.Descr)
	assert.Equal(t, "1", port.ContainedIn)
	assert.Equal(t, ClassPort, port.Class)
	assert.Equal(t, "Gi0/1", port.Name)
}

func TestPollDialError(t *testing.T) {
	p := NewPoller(Settings{Version: "1"})
	p.dial = func(context.Context, string, string) (walker, func(), error) {
		return nil, nil, errors.New("no route to host")
	}
	_, err := p.Poll(context.Background(), "192.0.2.1", "private")
	assert.ErrorContains(t, err, "no route to host")
}

func TestSamePort(t *testing.T) {
	tests := []struct {
		oldName, oldClass, newName, newClass string
		want                                 bool
	}{
		{"Gi0/9", "OpticalPort", "Gi0/9", "OpticalPort", true},
		{"gi0/9", "OpticalPort", "Gi0/9", "OpticalPort", true},
		{"Gi0/9", "OpticalPort", "Gi0/9", "ElectricalPort", false},
		{"ge0/9", "OpticalPort", "GigabitEthernet0/9", "OpticalPort", true},
		{"te0/0/1", "OpticalPort", "TenGigE0/0/1", "OpticalPort", true},
		{"Fa1/2", "ElectricalPort", "FastEthernet1/2", "ElectricalPort", true},
		{"Gi0/1", "OpticalPort", "Gi0/2", "OpticalPort", false},
		{"Gi0/1", "OpticalPort", "Gi0/0/1", "OpticalPort", false},
		{"Port 1", "ElectricalPort", "1", "ElectricalPort", true},
		{"po-s0/1", "OpticalPort", "pos0/1", "OpticalPort", true},
	}
	for _, tt := range tests {
		t.Run(tt.oldName+"~"+tt.newName, func(t *testing.T) {
			assert.Equal(t, tt.want, SamePort(tt.oldName, tt.oldClass, tt.newName, tt.newClass))
		})
	}
}
