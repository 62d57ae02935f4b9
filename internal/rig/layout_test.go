// internal/rig/layout_test.go
package rig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig-service/pkg/rigtypes"
)

func TestLayoutFixedRegion(t *testing.T) {
	profile := rigtypes.ProfileFor(rigtypes.MachineTwoPlus)
	layout := NewChannelLayout(profile)

	events := layout.EventNames()
	inputs := layout.InputChannelNames()
	outputs := layout.OutputChannelNames()

	// 4 ports + 2 BNC + 4 flex, two events each
	assert.Len(t, events, 2*(4+2+4))

	assert.Equal(t, "Port1In", events[0])
	assert.Equal(t, "Port1Out", events[1])
	assert.Equal(t, "BNC1High", events[8])
	assert.Equal(t, "BNC2Low", events[11])

	assert.Equal(t, "Port1", inputs[0])
	assert.Equal(t, "PWM1", outputs[0])
	assert.Equal(t, "BNC1", inputs[4])
	assert.Equal(t, "BNC1", outputs[4])
}

func TestLayoutDefaultFlexRegion(t *testing.T) {
	profile := rigtypes.ProfileFor(rigtypes.MachineTwoPlus)
	layout := NewChannelLayout(profile)

	// Every flex channel starts as digital input
	assert.Equal(t, []string{
		"Flex1High", "Flex1Low",
		"Flex2High", "Flex2Low",
		"Flex3High", "Flex3Low",
		"Flex4High", "Flex4Low",
	}, layout.FlexEventNames())
	assert.Equal(t, []string{"Flex1", "Flex2", "Flex3", "Flex4"}, layout.FlexInputNames())
	assert.Equal(t, []string{"---", "---", "---", "---"}, layout.FlexOutputNames())
}

func TestLayoutRetypedFlexRegion(t *testing.T) {
	profile := rigtypes.ProfileFor(rigtypes.MachineTwoPlus)
	layout := NewChannelLayout(profile)

	layout.ApplyFlexTypes([]rigtypes.ChannelType{
		rigtypes.ChannelDigitalIn,
		rigtypes.ChannelDigitalOut,
		rigtypes.ChannelAnalogIn,
		rigtypes.ChannelAnalogOut,
	})

	assert.Equal(t, []string{
		"Flex1High", "Flex1Low",
		"---", "---",
		"Flex3Trig1", "Flex3Trig2",
		"---", "---",
	}, layout.FlexEventNames())
	assert.Equal(t, []string{"Flex1", "---", "Flex3", "---"}, layout.FlexInputNames())
	assert.Equal(t, []string{"---", "Flex2DO", "---", "Flex4AO"}, layout.FlexOutputNames())
}

func TestLayoutLengthsStableAcrossRetyping(t *testing.T) {
	profile := rigtypes.ProfileFor(rigtypes.MachineTwoPlus)
	layout := NewChannelLayout(profile)

	eventLen := len(layout.EventNames())
	inputLen := len(layout.InputChannelNames())
	outputLen := len(layout.OutputChannelNames())

	variants := [][]rigtypes.ChannelType{
		{rigtypes.ChannelAnalogIn, rigtypes.ChannelAnalogIn, rigtypes.ChannelAnalogIn, rigtypes.ChannelAnalogIn},
		{rigtypes.ChannelDigitalOut, rigtypes.ChannelDigitalOut, rigtypes.ChannelDigitalOut, rigtypes.ChannelDigitalOut},
		{rigtypes.ChannelAnalogOut, rigtypes.ChannelDigitalIn, rigtypes.ChannelAnalogOut, rigtypes.ChannelDigitalIn},
	}
	for _, types := range variants {
		layout.ApplyFlexTypes(types)
		require.Len(t, layout.EventNames(), eventLen)
		require.Len(t, layout.InputChannelNames(), inputLen)
		require.Len(t, layout.OutputChannelNames(), outputLen)
	}
}

func TestLayoutNoFlexHardware(t *testing.T) {
	profile := rigtypes.ProfileFor(rigtypes.MachineHalfPointFive)
	layout := NewChannelLayout(profile)

	// 8 ports + 2 BNC + 4 wire inputs, two events each
	assert.Len(t, layout.EventNames(), 2*(8+2+4))
	assert.Empty(t, layout.FlexEventNames())
	assert.Empty(t, layout.FlexInputNames())
	assert.Empty(t, layout.FlexOutputNames())

	// Wire channels are asymmetric: 4 in, 4 out on r0.5
	inputs := layout.InputChannelNames()
	assert.Equal(t, "Wire1", inputs[len(inputs)-4])
}
