package protocolerrors

import (
	"testing"

	"github.com/pkg/errors"
)

func TestProtocolError(t *testing.T) {
	cause := errors.New("bad frame")
	err := Wrapf(true, cause, "peer %s", "10.0.0.1:18444")
	if !IsProtocolError(err) {
		t.Fatalf("TestProtocolError: expected %s to be a protocol error", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("TestProtocolError: expected %s to wrap its cause", err)
	}
	if err.Error() != "peer 10.0.0.1:18444: bad frame" {
		t.Fatalf("TestProtocolError: unexpected message %q", err.Error())
	}

	wrapped := errors.Wrap(New(false, "timeout"), "ping")
	var protocolErr *ProtocolError
	if !errors.As(wrapped, &protocolErr) {
		t.Fatalf("TestProtocolError: expected errors.As to find the protocol error in %s", wrapped)
	}
	if protocolErr.ShouldBan {
		t.Fatalf("TestProtocolError: unexpected ShouldBan")
	}
	if IsProtocolError(cause) {
		t.Fatalf("TestProtocolError: plain error reported as protocol error")
	}
}
