package appmessage

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// ErrMalformedMessage is returned by Decode for bodies that are not a
// well formed tagged message.
var ErrMalformedMessage = errors.New("malformed message")

// ErrUnknownMessageType is returned by Decode for a type tag that does not
// name a known message.
var ErrUnknownMessageType = errors.New("unknown message type")

var messageConstructors = map[string]func() Message{
	"Handshake":      func() Message { return &MsgHandshake{} },
	"GetPeers":       func() Message { return &MsgGetPeers{} },
	"Peers":          func() Message { return &MsgPeers{} },
	"GetBlocks":      func() Message { return &MsgGetBlocks{} },
	"Blocks":         func() Message { return &MsgBlocks{} },
	"GetBlock":       func() Message { return &MsgGetBlock{} },
	"Block":          func() Message { return &MsgBlock{} },
	"NewBlock":       func() Message { return &MsgNewBlock{} },
	"GetTransaction": func() Message { return &MsgGetTransaction{} },
	"Transaction":    func() Message { return &MsgTransaction{} },
	"NewTransaction": func() Message { return &MsgNewTransaction{} },
	"Ping":           func() Message { return &MsgPing{} },
	"Pong":           func() Message { return &MsgPong{} },
	"Error":          func() Message { return &MsgError{} },
}

type messageTag struct {
	Type *string `json:"type"`
}

// Encode serializes message into its JSON body: an object whose "type"
// field names the variant, followed by the variant's own fields.
func Encode(message Message) ([]byte, error) {
	tag, ok := MessageCommandToString[message.Command()]
	if !ok {
		return nil, errors.Errorf("cannot encode message with command %s", message.Command())
	}
	fields, err := json.Marshal(message)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s message", tag)
	}
	if len(fields) < 2 || fields[0] != '{' {
		return nil, errors.Errorf("%s message did not encode to a JSON object", tag)
	}

	var buf bytes.Buffer
	buf.Grow(len(fields) + len(tag) + 12)
	buf.WriteString(`{"type":`)
	buf.WriteString(strconv.Quote(tag))
	if len(fields) > 2 {
		buf.WriteByte(',')
	}
	buf.Write(fields[1:])
	return buf.Bytes(), nil
}

// Decode parses a JSON body produced by Encode back into its message.
func Decode(data []byte) (Message, error) {
	tag := messageTag{}
	err := json.Unmarshal(data, &tag)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "%s", err)
	}
	if tag.Type == nil {
		return nil, errors.Wrap(ErrMalformedMessage, "missing type field")
	}
	constructor, ok := messageConstructors[*tag.Type]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMessageType, "%q", *tag.Type)
	}
	message := constructor()
	err = json.Unmarshal(data, message)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "bad %s message: %s", *tag.Type, err)
	}
	return message, nil
}
