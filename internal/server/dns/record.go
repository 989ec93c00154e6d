// Package dns computes and applies the record change-sets that keep the
// authoritative zone in sync with a domain's declared state. It publishes
// three kinds of records per claimed label:
//
//	A      device.<label>.<root> -> access IP
//	CNAME  <label>.<root>        -> <root>
//	SRV    <type>.<label>.<root> -> device.<label>.<root>:<port>
package dns

import (
	"fmt"

	"github.com/zoneup/zoneup/internal/server/models"
)

// RecordType names the record types the reconciler manages.
type RecordType string

const (
	TypeA     RecordType = "A"
	TypeCNAME RecordType = "CNAME"
	TypeSRV   RecordType = "SRV"
)

// Op is the direction of one record change.
type Op string

const (
	OpUpsert Op = "UPSERT"
	OpDelete Op = "DELETE"
)

// Change is one record mutation inside a provider change batch.
type Change struct {
	Op    Op
	Type  RecordType
	Name  string
	Value string
}

// DeviceFQDN returns the name of the A record for a label:
// "device.<label>.<root>".
func DeviceFQDN(label, root string) string {
	return fmt.Sprintf("device.%s.%s", label, root)
}

// LabelFQDN returns the name of the redirector CNAME for a label:
// "<label>.<root>".
func LabelFQDN(label, root string) string {
	return fmt.Sprintf("%s.%s", label, root)
}

// ServiceFQDN returns the name of the SRV record for a service under a
// label: "<type>.<label>.<root>".
func ServiceFQDN(svc models.Service, label, root string) string {
	return fmt.Sprintf("%s.%s.%s", svc.Type, label, root)
}

// ServicePort picks the port published in the SRV record. The local port
// takes over only when the domain maps its local address and the service
// declares one, keeping the SRV endpoint consistent with the A record.
func ServicePort(d *models.Domain, svc models.Service) int {
	if d.MapLocalAddress && svc.LocalPort != 0 {
		return svc.LocalPort
	}
	return svc.Port
}

// srvValue renders the SRV record data: priority weight port target.
func srvValue(d *models.Domain, svc models.Service, root string) string {
	return fmt.Sprintf("0 0 %d %s", ServicePort(d, svc), DeviceFQDN(d.UserDomain, root))
}
