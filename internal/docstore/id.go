package docstore

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// IDGenerator returns a new record id.
type IDGenerator func() (string, error)

// UUIDGenerator produces random (version 4) UUID strings.
func UUIDGenerator() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// LegacyGenerator produces ids in the historical short form: "_" followed
// by nine base-36 characters. The characters come from crypto/rand, but the
// id space (36^9) is small enough for collisions to matter on large
// collections; the store re-draws on collision.
func LegacyGenerator() (string, error) {
	var b strings.Builder
	b.Grow(10)
	b.WriteByte('_')
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String(), nil
}

// GeneratorByName maps a configuration value to a generator: "legacy"
// selects LegacyGenerator, anything else UUIDGenerator.
func GeneratorByName(name string) IDGenerator {
	if strings.EqualFold(name, "legacy") {
		return LegacyGenerator
	}
	return UUIDGenerator
}
