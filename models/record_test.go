// backend/models/record_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to UpdateStatus
		want     bool
	}{
		{StatusChecked, StatusApproved, true},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusFailed, true},

		{StatusChecked, StatusCompleted, false},
		{StatusChecked, StatusFailed, false},
		{StatusChecked, StatusChecked, false},
		{StatusApproved, StatusChecked, false},
		{StatusApproved, StatusApproved, false},
		{StatusCompleted, StatusApproved, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusApproved, false},
		{StatusFailed, StatusChecked, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to),
			"transition %s -> %s", c.from, c.to)
	}
}

func TestPending(t *testing.T) {
	assert.True(t, (&UpdateCheckRecord{Status: StatusChecked, UpdateAvailable: true}).Pending())
	assert.False(t, (&UpdateCheckRecord{Status: StatusChecked, UpdateAvailable: false}).Pending())
	assert.False(t, (&UpdateCheckRecord{Status: StatusApproved, UpdateAvailable: true}).Pending())
	assert.False(t, (&UpdateCheckRecord{Status: StatusCompleted, UpdateAvailable: true}).Pending())
}

func TestParseDatasetType(t *testing.T) {
	for _, known := range AllDatasetTypes {
		got, err := ParseDatasetType(string(known))
		assert.NoError(t, err)
		assert.Equal(t, known, got)
	}
	_, err := ParseDatasetType("bogus")
	assert.Error(t, err)
}
