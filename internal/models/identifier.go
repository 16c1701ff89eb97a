// Package models defines the hydrofabric identifier types for hfx.
package models

import "strings"

// Category is the kind of hydrofabric feature an identifier refers to.
type Category int

const (
	Unknown Category = iota
	Catchment
	Waterbody
	Nexus
)

// Separator splits an identifier into its prefix and its numeric part.
const Separator = "-"

var categoryNames = [...]string{
	Unknown:   "unknown",
	Catchment: "catchment",
	Waterbody: "waterbody",
	Nexus:     "nexus",
}

// String returns the lower-case category name.
func (c Category) String() string {
	if c < Unknown || c > Nexus {
		return categoryNames[Unknown]
	}
	return categoryNames[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Classify returns the category of id based on the text before its first
// separator. Matching is exact and case-sensitive; anything unrecognised,
// including an empty string or an id without a separator, is Unknown.
func Classify(id string) Category {
	prefix, _, found := strings.Cut(id, Separator)
	if !found {
		return Unknown
	}
	switch prefix {
	case "cat": // catchment/divide
		return Catchment
	case "wb": // waterbody/flowpath
		return Waterbody
	case "nex", "cnx", "tnx": // normal, coastal and terminal nexus
		return Nexus
	default:
		return Unknown
	}
}
