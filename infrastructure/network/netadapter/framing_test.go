package netadapter

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/pkg/errors"
)

func frame(body []byte) []byte {
	framed := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(framed, uint32(len(body)))
	copy(framed[4:], body)
	return framed
}

func TestWriteReadMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	messages := []appmessage.Message{
		appmessage.NewMsgPing(1700000000),
		appmessage.NewMsgGetPeers(),
		appmessage.NewMsgError(appmessage.ErrorCodeNotFound, "not found"),
	}
	for _, message := range messages {
		err := WriteMessage(buf, message)
		if err != nil {
			t.Fatalf("TestWriteReadMessage: WriteMessage unexpectedly failed: %s", err)
		}
	}

	for _, expected := range messages {
		message, err := ReadMessage(buf)
		if err != nil {
			t.Fatalf("TestWriteReadMessage: ReadMessage unexpectedly failed: %s", err)
		}
		if message.Command() != expected.Command() {
			t.Fatalf("TestWriteReadMessage: got %s, want %s", message.Command(), expected.Command())
		}
	}

	_, err := ReadMessage(buf)
	if err != io.EOF {
		t.Fatalf("TestWriteReadMessage: expected io.EOF at the end of the stream, got %v", err)
	}
}

func TestWriteMessageFrameLayout(t *testing.T) {
	buf := &bytes.Buffer{}
	err := WriteMessage(buf, appmessage.NewMsgPing(1700000000))
	if err != nil {
		t.Fatalf("TestWriteMessageFrameLayout: WriteMessage unexpectedly failed: %s", err)
	}
	expectedBody := `{"type":"Ping","timestamp":1700000000}`
	if !bytes.Equal(buf.Bytes(), frame([]byte(expectedBody))) {
		t.Fatalf("TestWriteMessageFrameLayout: got frame %q, want %q", buf.Bytes(), frame([]byte(expectedBody)))
	}
}

func TestReadMessageProtocolViolations(t *testing.T) {
	oversizedHeader := make([]byte, 4)
	binary.BigEndian.PutUint32(oversizedHeader, MaxMessageLength+1)

	tests := []struct {
		name  string
		input []byte
	}{
		{"oversized length", oversizedHeader},
		{"invalid utf-8", frame([]byte{'{', '"', 0xff, 0xfe, '"', '}'})},
		{"malformed json", frame([]byte(`{"type":"Ping",`))},
		{"unknown type", frame([]byte(`{"type":"Version"}`))},
		{"empty body", frame([]byte{})},
	}
	for _, test := range tests {
		_, err := ReadMessage(bytes.NewReader(test.input))
		if !protocolerrors.IsProtocolError(err) {
			t.Errorf("TestReadMessageProtocolViolations: %s: expected a protocol error, got %v", test.name, err)
		}
	}
}

func TestReadMessageMaxLengthAccepted(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, MaxMessageLength)

	// A frame of exactly the maximum length is not rejected up front: the
	// reader goes on to read the body, which is missing here.
	_, err := ReadMessage(bytes.NewReader(header))
	if protocolerrors.IsProtocolError(err) {
		t.Fatalf("TestReadMessageMaxLengthAccepted: a maximum length frame was rejected: %s", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("TestReadMessageMaxLengthAccepted: expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadMessageTruncated(t *testing.T) {
	full := frame([]byte(`{"type":"GetPeers"}`))
	_, err := ReadMessage(bytes.NewReader(full[:len(full)-3]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("TestReadMessageTruncated: expected io.ErrUnexpectedEOF, got %v", err)
	}
	_, err = ReadMessage(bytes.NewReader(full[:2]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("TestReadMessageTruncated: expected io.ErrUnexpectedEOF for a partial header, got %v", err)
	}
}
