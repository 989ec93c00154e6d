package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zoneup/zoneup/internal/common"
	"github.com/zoneup/zoneup/internal/netx"
)

const minPasswordLength = 8

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	labelRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)
	macRe   = regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`)
	srvRe   = regexp.MustCompile(`^_[a-z0-9-]+\._(tcp|udp)$`)
)

// normalizeEmail lowercases and trims an address; emails are unique
// case-insensitively.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return fmt.Errorf("%w: malformed email", common.ErrBadRequest)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrBadRequest, minPasswordLength)
	}
	return nil
}

func validateLabel(label string) error {
	if !labelRe.MatchString(label) {
		return fmt.Errorf("%w: malformed domain label", common.ErrBadRequest)
	}
	return nil
}

func validateMacAddress(mac string) error {
	if !macRe.MatchString(mac) {
		return fmt.Errorf("%w: malformed MAC address", common.ErrBadRequest)
	}
	return nil
}

func validateIP(ip string) error {
	if !netx.ValidIP(ip) {
		return fmt.Errorf("%w: malformed IP address", common.ErrBadRequest)
	}
	return nil
}

func validateServiceType(serviceType string) error {
	if !srvRe.MatchString(serviceType) {
		return fmt.Errorf("%w: malformed service type", common.ErrBadRequest)
	}
	return nil
}
