package orderid_test

import (
	"testing"
	"time"

	"carshop/internal/orderid"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	today := time.Date(2024, time.January, 1, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		prev string
		want string
	}{
		{"same day increments", "INV-20240101-0007", "INV-20240101-0008"},
		{"empty starts at one", "", "INV-20240101-0001"},
		{"previous day resets", "INV-20231231-0042", "INV-20240101-0001"},
		{"too few segments", "INV-20240101", "INV-20240101-0001"},
		{"too many segments", "INV-2024-01-01-0003", "INV-20240101-0001"},
		{"non numeric sequence", "INV-20240101-abcd", "INV-20240101-0001"},
		{"foreign prefix", "ORD-20240101-0005", "INV-20240101-0001"},
		{"crosses four digits", "INV-20240101-9999", "INV-20240101-10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderid.Next("INV", tt.prev, today))
		})
	}
}

func TestNext_DefaultPrefix(t *testing.T) {
	now := time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-20250309-0001", orderid.Next("", "", now))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "INV", orderid.Prefix("INV-20240215-0003"))
	assert.Equal(t, "CAR", orderid.Prefix("CAR-20240215-0120"))
	assert.Empty(t, orderid.Prefix("garbage"))
	assert.Empty(t, orderid.Prefix("INV-2024-0001"))
	assert.Empty(t, orderid.Prefix("-20240215-0001"))
}
