package netadapter

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/pkg/errors"
)

const (
	// MaxMessageLength is the maximum length of a message body in bytes
	MaxMessageLength = 10 * 1024 * 1024

	messageHeaderLength = 4
)

// ErrMessageTooLong is returned when writing a message whose encoding
// exceeds MaxMessageLength.
var ErrMessageTooLong = errors.New("message exceeds the maximum message length")

// WriteMessage writes message to w as a 4-byte big-endian length followed
// by the message's JSON body.
func WriteMessage(w io.Writer, message appmessage.Message) error {
	body, err := appmessage.Encode(message)
	if err != nil {
		return err
	}
	if len(body) > MaxMessageLength {
		return errors.Wrapf(ErrMessageTooLong, "%s message of %d bytes", message.Command(), len(body))
	}

	frame := make([]byte, messageHeaderLength+len(body))
	binary.BigEndian.PutUint32(frame[:messageHeaderLength], uint32(len(body)))
	copy(frame[messageHeaderLength:], body)
	_, err = w.Write(frame)
	return errors.WithStack(err)
}

// ReadMessage reads a single framed message from r. io.EOF is returned
// as is when r ends cleanly between frames. Frames that violate the
// protocol result in a ProtocolError.
func ReadMessage(r io.Reader) (appmessage.Message, error) {
	var header [messageHeaderLength]byte
	_, err := io.ReadFull(r, header[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.WithStack(err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxMessageLength {
		return nil, protocolerrors.Errorf(true, "message length %d exceeds the maximum of %d",
			length, MaxMessageLength)
	}

	body := make([]byte, length)
	_, err = io.ReadFull(r, body)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !utf8.Valid(body) {
		return nil, protocolerrors.New(true, "message body is not valid UTF-8")
	}
	message, err := appmessage.Decode(body)
	if err != nil {
		return nil, protocolerrors.Wrap(true, err, "failed to decode message")
	}
	return message, nil
}
