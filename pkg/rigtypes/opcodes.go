// pkg/rigtypes/opcodes.go
package rigtypes

// Command opcodes understood by the state machine firmware. Each command is
// a single opcode byte followed by a fixed-size payload; stateful commands
// are acknowledged with a single confirmation byte.
const (
	OpHandshake        byte = '6' // no payload, device answers AckHandshake
	OpFirmwareQuery    byte = 'F' // no payload, device answers uint16 firmware + uint16 machine type (LE)
	OpModuleRelay      byte = 'J' // payload: module index (0-based), 1|0; no confirmation
	OpEnumerateModules byte = 'M' // no payload, device answers per-slot module records
	OpConfigureFlexIO  byte = 'Q' // payload: one channel-type byte per Flex channel; confirmed
	OpSetSamplingRate  byte = '^' // payload: cycles-per-sample as uint32 LE; confirmed
	OpStatusLED        byte = ':' // payload: 1|0; confirmed; firmware >= StatusLEDMinFirmware only
	OpDisconnect       byte = 'Z' // no payload, no reply; releases the device
)

// AckHandshake is the byte returned for a successful handshake.
const AckHandshake byte = '5'

// AckOK is the confirmation byte for every acknowledged command.
const AckOK byte = 1
