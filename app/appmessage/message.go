package appmessage

import (
	"fmt"
	"time"
)

// MessageCommand is a number that represents the type of a message.
type MessageCommand uint32

func (cmd MessageCommand) String() string {
	cmdString, ok := MessageCommandToString[cmd]
	if !ok {
		cmdString = "unknown command"
	}
	return fmt.Sprintf("%s [code %d]", cmdString, uint8(cmd))
}

// Commands of the GXC peer protocol, one per message variant.
const (
	CmdHandshake MessageCommand = iota
	CmdGetPeers
	CmdPeers
	CmdGetBlocks
	CmdBlocks
	CmdGetBlock
	CmdBlock
	CmdNewBlock
	CmdGetTransaction
	CmdTransaction
	CmdNewTransaction
	CmdPing
	CmdPong
	CmdError
)

// MessageCommandToString maps all MessageCommands to their string
// representation. The string is also the message's "type" tag on the wire.
var MessageCommandToString = map[MessageCommand]string{
	CmdHandshake:      "Handshake",
	CmdGetPeers:       "GetPeers",
	CmdPeers:          "Peers",
	CmdGetBlocks:      "GetBlocks",
	CmdBlocks:         "Blocks",
	CmdGetBlock:       "GetBlock",
	CmdBlock:          "Block",
	CmdNewBlock:       "NewBlock",
	CmdGetTransaction: "GetTransaction",
	CmdTransaction:    "Transaction",
	CmdNewTransaction: "NewTransaction",
	CmdPing:           "Ping",
	CmdPong:           "Pong",
	CmdError:          "Error",
}

// Message is an interface that describes a GXC peer message. A type that
// implements Message has complete control over the representation of its data
// and may therefore contain additional or fewer fields than those which
// are used directly in the protocol encoded message.
type Message interface {
	Command() MessageCommand
	MessageNumber() uint64
	SetMessageNumber(index uint64)
	ReceivedAt() time.Time
	SetReceivedAt(receivedAt time.Time)
}
