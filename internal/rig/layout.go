// internal/rig/layout.go
package rig

import (
	"fmt"
	"sync"

	"rig-service/pkg/rigtypes"
)

// PlaceholderName fills table slots that have no live channel behind them,
// so positional indexing into the tables stays valid across retyping.
const PlaceholderName = "---"

// ChannelLayout holds the derived event and channel name tables. The fixed
// region is built once from the hardware profile; the Flex region is
// replaced wholesale on every reconfiguration. Table lengths never change
// after construction.
type ChannelLayout struct {
	mutex   sync.RWMutex
	profile rigtypes.HardwareProfile

	eventNames  []string
	inputNames  []string
	outputNames []string

	// first Flex slot in each table
	flexEventOffset  int
	flexInputOffset  int
	flexOutputOffset int
}

// NewChannelLayout builds the tables for a hardware profile with every Flex
// channel initially typed as digital input.
func NewChannelLayout(profile rigtypes.HardwareProfile) *ChannelLayout {
	l := &ChannelLayout{profile: profile}

	for i := 1; i <= profile.BehaviorPorts; i++ {
		l.eventNames = append(l.eventNames, fmt.Sprintf("Port%dIn", i), fmt.Sprintf("Port%dOut", i))
		l.inputNames = append(l.inputNames, fmt.Sprintf("Port%d", i))
		l.outputNames = append(l.outputNames, fmt.Sprintf("PWM%d", i))
	}
	for i := 1; i <= profile.BNCChannels; i++ {
		l.eventNames = append(l.eventNames, fmt.Sprintf("BNC%dHigh", i), fmt.Sprintf("BNC%dLow", i))
		l.inputNames = append(l.inputNames, fmt.Sprintf("BNC%d", i))
		l.outputNames = append(l.outputNames, fmt.Sprintf("BNC%d", i))
	}
	for i := 1; i <= profile.WireInputs; i++ {
		l.eventNames = append(l.eventNames, fmt.Sprintf("Wire%dHigh", i), fmt.Sprintf("Wire%dLow", i))
		l.inputNames = append(l.inputNames, fmt.Sprintf("Wire%d", i))
	}
	for i := 1; i <= profile.WireOutputs; i++ {
		l.outputNames = append(l.outputNames, fmt.Sprintf("Wire%d", i))
	}

	l.flexEventOffset = len(l.eventNames)
	l.flexInputOffset = len(l.inputNames)
	l.flexOutputOffset = len(l.outputNames)

	defaultTypes := make([]rigtypes.ChannelType, profile.FlexChannels)
	for i := range defaultTypes {
		defaultTypes[i] = rigtypes.ChannelDigitalIn
	}
	events, inputs, outputs := flexRegion(defaultTypes)
	l.eventNames = append(l.eventNames, events...)
	l.inputNames = append(l.inputNames, inputs...)
	l.outputNames = append(l.outputNames, outputs...)

	return l
}

// flexRegion derives the Flex slice of each table from a type vector. Each
// channel contributes exactly one event-name pair, one input slot and one
// output slot regardless of type, so the region is always replaced in
// lock-step.
func flexRegion(types []rigtypes.ChannelType) (events, inputs, outputs []string) {
	for i, t := range types {
		n := i + 1
		switch t {
		case rigtypes.ChannelDigitalIn:
			events = append(events, fmt.Sprintf("Flex%dHigh", n), fmt.Sprintf("Flex%dLow", n))
			inputs = append(inputs, fmt.Sprintf("Flex%d", n))
			outputs = append(outputs, PlaceholderName)
		case rigtypes.ChannelAnalogIn:
			events = append(events, fmt.Sprintf("Flex%dTrig1", n), fmt.Sprintf("Flex%dTrig2", n))
			inputs = append(inputs, fmt.Sprintf("Flex%d", n))
			outputs = append(outputs, PlaceholderName)
		case rigtypes.ChannelDigitalOut:
			events = append(events, PlaceholderName, PlaceholderName)
			inputs = append(inputs, PlaceholderName)
			outputs = append(outputs, fmt.Sprintf("Flex%dDO", n))
		case rigtypes.ChannelAnalogOut:
			events = append(events, PlaceholderName, PlaceholderName)
			inputs = append(inputs, PlaceholderName)
			outputs = append(outputs, fmt.Sprintf("Flex%dAO", n))
		}
	}
	return events, inputs, outputs
}

// ApplyFlexTypes replaces the Flex region of all three tables in one step
func (l *ChannelLayout) ApplyFlexTypes(types []rigtypes.ChannelType) {
	events, inputs, outputs := flexRegion(types)

	l.mutex.Lock()
	defer l.mutex.Unlock()
	copy(l.eventNames[l.flexEventOffset:], events)
	copy(l.inputNames[l.flexInputOffset:], inputs)
	copy(l.outputNames[l.flexOutputOffset:], outputs)
}

// EventNames returns a copy of the event name table
func (l *ChannelLayout) EventNames() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	out := make([]string, len(l.eventNames))
	copy(out, l.eventNames)
	return out
}

// InputChannelNames returns a copy of the input channel name table
func (l *ChannelLayout) InputChannelNames() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	out := make([]string, len(l.inputNames))
	copy(out, l.inputNames)
	return out
}

// OutputChannelNames returns a copy of the output channel name table
func (l *ChannelLayout) OutputChannelNames() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	out := make([]string, len(l.outputNames))
	copy(out, l.outputNames)
	return out
}

// FlexEventNames returns a copy of just the Flex slice of the event table
func (l *ChannelLayout) FlexEventNames() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	out := make([]string, len(l.eventNames)-l.flexEventOffset)
	copy(out, l.eventNames[l.flexEventOffset:])
	return out
}

// FlexInputNames returns a copy of just the Flex slice of the input table
func (l *ChannelLayout) FlexInputNames() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	out := make([]string, len(l.inputNames)-l.flexInputOffset)
	copy(out, l.inputNames[l.flexInputOffset:])
	return out
}

// FlexOutputNames returns a copy of just the Flex slice of the output table
func (l *ChannelLayout) FlexOutputNames() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	out := make([]string, len(l.outputNames)-l.flexOutputOffset)
	copy(out, l.outputNames[l.flexOutputOffset:])
	return out
}
