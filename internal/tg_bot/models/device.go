package models

import "strings"

// Policy is a router traffic policy identifier.
type Policy string

// PolicyDefault marks a device without any named policy.
const PolicyDefault Policy = "default"

// TogglePolicy returns the policy a button press switches to: restricted devices go
// back to default, everything else becomes restricted.
func TogglePolicy(current, restricted Policy) Policy {
	if current == restricted {
		return PolicyDefault
	}
	return restricted
}

// Device is a host known to the router.
type Device struct {
	MAC    string `json:"mac"`
	Name   string `json:"name"`
	Policy Policy `json:"policy"`
}

// FavoriteDevices is the ordered set of devices shown on the control panel.
type FavoriteDevices []Device

// Find looks a device up by MAC, ignoring case.
func (f FavoriteDevices) Find(mac string) (Device, bool) {
	for _, d := range f {
		if strings.EqualFold(d.MAC, mac) {
			return d, true
		}
	}
	return Device{}, false
}

// Favorite selects a router host for the control panel. Name, when set, replaces the
// name reported by the router.
type Favorite struct {
	MAC  string `yaml:"mac"`
	Name string `yaml:"name"`
}
