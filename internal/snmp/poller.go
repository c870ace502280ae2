package snmp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/martinsuchenak/invd/internal/log"
)

// entPhysicalEntry columns
const (
	oidEntPhysicalEntry = "1.3.6.1.2.1.47.1.1.1.1"

	colDescr       = oidEntPhysicalEntry + ".2"
	colContainedIn = oidEntPhysicalEntry + ".4"
	colClass       = oidEntPhysicalEntry + ".5"
	colName        = oidEntPhysicalEntry + ".7"
	colSerialNum   = oidEntPhysicalEntry + ".11"
	colMfgName     = oidEntPhysicalEntry + ".12"
	colModelName   = oidEntPhysicalEntry + ".13"
)

var columns = []string{colDescr, colContainedIn, colClass, colName, colSerialNum, colMfgName, colModelName}

// Settings configures SNMP access
type Settings struct {
	Community string
	Port      int
	Version   string
	Timeout   time.Duration
	Retries   int
}

// walker is the part of gosnmp the poller uses
type walker interface {
	WalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
	BulkWalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
}

// Poller reads entity tables over SNMP
type Poller struct {
	settings Settings
	dial     func(ctx context.Context, target, community string) (walker, func(), error)
}

// NewPoller creates a Poller
func NewPoller(settings Settings) *Poller {
	p := &Poller{settings: settings}
	p.dial = p.connect
	return p
}

func (p *Poller) version() gosnmp.SnmpVersion {
	if p.settings.Version == "1" {
		return gosnmp.Version1
	}
	return gosnmp.Version2c
}

func (p *Poller) connect(ctx context.Context, target, community string) (walker, func(), error) {
	g := &gosnmp.GoSNMP{
		Target:             target,
		Port:               uint16(p.settings.Port),
		Community:          community,
		Version:            p.version(),
		Timeout:            p.settings.Timeout,
		Retries:            p.settings.Retries,
		Context:            ctx,
		ExponentialTimeout: true,
	}
	if err := g.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	return g, func() { g.Conn.Close() }, nil
}

// Poll walks the entity table of target. An empty community uses the default.
func (p *Poller) Poll(ctx context.Context, target, community string) (*EntityTable, error) {
	if community == "" {
		community = p.settings.Community
	}
	w, closeFn, err := p.dial(ctx, target, community)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	start := time.Now()
	t := &EntityTable{}
	for _, column := range columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var pdus []gosnmp.SnmpPDU
		if p.version() == gosnmp.Version1 {
			pdus, err = w.WalkAll(column)
		} else {
			pdus, err = w.BulkWalkAll(column)
		}
		if err != nil {
			return nil, fmt.Errorf("walking %s on %s: %w", column, target, err)
		}
		for _, pdu := range pdus {
			t.set(column, pdu)
		}
	}
	log.Debug("Entity table polled", "target", target, "rows", len(t.Rows), "elapsed", time.Since(start))
	return t, nil
}

// set stores one varbind, adding the row when it is new
func (t *EntityTable) set(column string, pdu gosnmp.SnmpPDU) {
	index, ok := parseIndex(pdu.Name, column)
	if !ok {
		return
	}
	row, found := t.Row(index)
	if !found {
		t.Rows = append(t.Rows, Entity{Index: index})
		row = &t.Rows[len(t.Rows)-1]
	}

	switch column {
	case colDescr:
		row.Descr = pduString(pdu)
	case colContainedIn:
		row.ContainedIn = gosnmp.ToBigInt(pdu.Value).String()
	case colClass:
		row.Class = int(gosnmp.ToBigInt(pdu.Value).Int64())
	case colName:
		row.Name = pduString(pdu)
	case colSerialNum:
		row.SerialNum = pduString(pdu)
	case colMfgName:
		row.MfgName = pduString(pdu)
	case colModelName:
		row.ModelName = pduString(pdu)
	}
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return strings.TrimSpace(string(v))
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
