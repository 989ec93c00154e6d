// Package models defines the server-side entities: users, the domains they
// claim, the services advertised under a domain, and single-purpose action
// tokens.
package models

import "time"

// User is a registered account. Email is stored lowercased and is unique.
// An inactive user cannot authenticate.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// Domain is a claimed subdomain label bound to one device of one user.
// UserDomain is globally unique and immutable after acquisition. UpdateToken
// is the opaque credential a device presents on subsequent updates; it
// rotates on every successful acquisition of the label.
type Domain struct {
	ID               string
	UserID           string
	UserDomain       string
	DeviceMacAddress string
	DeviceName       string
	DeviceTitle      string
	IP               string
	LocalIP          string
	MapLocalAddress  bool
	PlatformVersion  string
	UpdateToken      string
	LastUpdate       time.Time
	Services         []Service
}

// AccessIP returns the address published as the domain's A record: LocalIP
// when MapLocalAddress is set, the public IP otherwise.
func (d *Domain) AccessIP() string {
	if d.MapLocalAddress {
		return d.LocalIP
	}
	return d.IP
}

// Service is one advertised endpoint under a domain. Identity within a
// domain is (Name, Type); the full set is replaced wholesale on every
// domain update.
type Service struct {
	Name      string
	Protocol  string
	Type      string // DNS SRV service/protocol label, e.g. "_http._tcp"
	Port      int
	LocalPort int
	URL       string
}

// ServiceKey identifies a service within a domain.
type ServiceKey struct {
	Name string
	Type string
}

// Key returns the (Name, Type) identity of the service.
func (s Service) Key() ServiceKey {
	return ServiceKey{Name: s.Name, Type: s.Type}
}

// ActionType enumerates the purposes an opaque token can be issued for.
type ActionType string

const (
	ActionActivate      ActionType = "activate"
	ActionResetPassword ActionType = "reset_password"
)

// Action is a single-purpose opaque token tied to one user. At most one
// live token exists per (user, type) pair; consuming it deletes the row.
type Action struct {
	ID        string
	UserID    string
	Type      ActionType
	Token     string
	CreatedAt time.Time
}
