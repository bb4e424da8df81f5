// Package persistence mints persistent identifiers. Production points the
// prefix at a registered handle namespace; the default is the DataCite
// test prefix, which resolvers ignore.
package persistence

import (
	"fmt"

	"github.com/google/uuid"
)

const defaultPrefix = "10.5072"

// Minter hands out persistent identifiers. Implementations must never
// return the same value twice.
type Minter interface {
	NewPID() string
}

type UUIDMinter struct {
	prefix string
}

func NewUUIDMinter(prefix string) *UUIDMinter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &UUIDMinter{prefix: prefix}
}

func (m *UUIDMinter) NewPID() string {
	return fmt.Sprintf("%s/%s", m.prefix, uuid.NewString())
}
