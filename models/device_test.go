package models

import "testing"

func TestDeviceStatus(t *testing.T) {
	if got := (DeviceSnapshot{Online: true}).Status(); got != "online" {
		t.Errorf("Status: want online, got %s", got)
	}
	if got := (DeviceSnapshot{}).Status(); got != "offline" {
		t.Errorf("Status: want offline, got %s", got)
	}
}
