package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicsToDrop(t *testing.T) {
	old := &trackerSet{topics: []string{
		"composite/source/device_tracker.phone_gps",
		"composite/source/binary_sensor.bed_occupied",
	}}
	next := &trackerSet{topics: []string{
		"composite/source/device_tracker.phone_gps",
		"composite/source/device_tracker.phone_wifi",
	}}

	// A reload must never unsubscribe a topic the new set re-subscribed, or
	// the rebuilt trackers stop receiving source updates.
	drop := topicsToDrop(old.topics, next.topicSet())
	assert.Equal(t, []string{"composite/source/binary_sensor.bed_occupied"}, drop)

	// Final shutdown drops everything.
	assert.Equal(t, old.topics, topicsToDrop(old.topics, nil))

	// Identical configurations drop nothing.
	assert.Nil(t, topicsToDrop(old.topics, old.topicSet()))
}
