package tz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokyoOffset(t *testing.T) {
	at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC).In(Tokyo)
	_, offset := at.Zone()
	assert.Equal(t, 9*60*60, offset)
	assert.Equal(t, 21, at.Hour())
}
