package model

import (
	"strings"
	"unicode"
)

// MaxVehicleIDLength bounds vehicle identities accepted from the wire.
const MaxVehicleIDLength = 64

// Vehicle is an inventory record.
type Vehicle struct {
	ID             string `json:"vehicleId"`
	Name           string `json:"name,omitempty"`
	GatewayAddress string `json:"gatewayAddress,omitempty"`
}

// ValidVehicleID reports whether id can be used as a routing key: non-empty,
// bounded, printable and free of the separators used by the text codecs
// and topic paths.
func ValidVehicleID(id string) bool {
	if id == "" || len(id) > MaxVehicleIDLength {
		return false
	}
	if strings.ContainsAny(id, ",/+#") {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
