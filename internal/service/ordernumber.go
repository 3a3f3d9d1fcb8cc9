package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultOrderNumberPrefix = "CP"
	orderNumberRandomLen     = 8
	orderNumberDateLayout    = "20060102"
)

// OrderNumberGenerator builds public order numbers: prefix, creation date
// and a random uppercase suffix. It holds no state between calls.
type OrderNumberGenerator struct {
	prefix string
	random func(n int) (string, error)
}

func NewOrderNumberGenerator(prefix string) *OrderNumberGenerator {
	if prefix == "" {
		prefix = DefaultOrderNumberPrefix
	}
	return &OrderNumberGenerator{prefix: strings.ToUpper(prefix), random: randomHex}
}

// randomHex returns n hex digits of a fresh v4 uuid. The leading 8 digits
// are all random bits, the version nibble sits further right.
func randomHex(n int) (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	hex := strings.ReplaceAll(u.String(), "-", "")
	if n > len(hex) {
		return "", fmt.Errorf("suffix length %d exceeds %d", n, len(hex))
	}
	return hex[:n], nil
}

func (g *OrderNumberGenerator) Next(now time.Time) (string, error) {
	suffix, err := g.random(orderNumberRandomLen)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return g.prefix + now.UTC().Format(orderNumberDateLayout) + strings.ToUpper(suffix), nil
}
