package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_ResetZeroesBuffer(t *testing.T) {
	p := NewPage()
	p.Data[0] = 0xAB
	p.Data[PageSize-1] = 0xCD

	p.Reset()

	for i, b := range p.Data {
		assert.Zerof(t, b, "byte %d not zeroed", i)
	}
}
