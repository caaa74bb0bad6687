// Package id provides utility functions for generating unique ids.
package id

import (
	"github.com/oklog/ulid/v2"
)

type prefix uint8

const (
	Request prefix = iota
)

var prefixes = map[prefix]string{
	Request: "req",
}

func New(prefix prefix) string {
	id := ulid.Make()
	return prefixes[prefix] + "_" + id.String()
}
