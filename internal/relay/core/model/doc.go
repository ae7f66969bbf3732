// Package model holds the relay's data types and their wire codecs:
// telemetry samples reported by gateways, commands issued by viewers and
// the vehicle records served by the inventory.
package model
