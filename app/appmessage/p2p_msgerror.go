package appmessage

import "fmt"

// MsgError implements the Message interface and represents a GXC Error
// message. It reports why a request could not be served or why the
// connection is about to be closed.
type MsgError struct {
	baseMessage
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgError) Command() MessageCommand {
	return CmdError
}

func (msg *MsgError) String() string {
	return fmt.Sprintf("error %d: %s", msg.Code, msg.Message)
}

// NewMsgError returns a new GXC Error message
func NewMsgError(code uint32, message string) *MsgError {
	return &MsgError{Code: code, Message: message}
}
