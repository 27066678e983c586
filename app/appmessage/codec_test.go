package appmessage

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/pkg/errors"
)

func testBlock() *model.Block {
	return &model.Block{
		Height:       7,
		Hash:         "000abc",
		PreviousHash: "000def",
		MerkleRoot:   "123",
		Timestamp:    1700000420,
		Nonce:        99,
		Difficulty:   3,
		Miner:        "miner",
		WorkReceipt:  "000abc",
		Transactions: []*model.Transaction{{
			Hash:       "cb",
			From:       "coinbase",
			To:         "miner",
			Amount:     50,
			Timestamp:  1700000420,
			IsCoinbase: true,
		}},
	}
}

func TestEncodeDecodeAllMessages(t *testing.T) {
	tx := &model.Transaction{Hash: "aa", From: "a", To: "b", Amount: 1.5, Fee: 0.1, Timestamp: 1, Signature: "sig"}
	messages := []Message{
		NewMsgHandshake("node-1", 42, "testnet"),
		NewMsgGetPeers(),
		NewMsgPeers([]*PeerInfo{{Address: "10.0.0.1", Port: 18444, NodeID: "n2", Version: 1, BestHeight: 3}}),
		NewMsgGetBlocks(10, 500),
		NewMsgBlocks([]*model.Block{testBlock()}),
		NewMsgGetBlock("000abc"),
		NewMsgBlock(testBlock()),
		NewMsgNewBlock(testBlock()),
		NewMsgGetTransaction("aa"),
		NewMsgTransaction(tx),
		NewMsgNewTransaction(tx),
		NewMsgPing(1700000000),
		NewMsgPong(1700000000),
		NewMsgError(ErrorCodeNotFound, "block not found"),
	}
	if len(messages) != len(MessageCommandToString) {
		t.Fatalf("TestEncodeDecodeAllMessages: test covers %d messages, but there are %d commands",
			len(messages), len(MessageCommandToString))
	}

	for _, message := range messages {
		encoded, err := Encode(message)
		if err != nil {
			t.Fatalf("TestEncodeDecodeAllMessages: Encode(%s) unexpectedly failed: %s", message.Command(), err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("TestEncodeDecodeAllMessages: Decode(%s) unexpectedly failed: %s", encoded, err)
		}
		if decoded.Command() != message.Command() {
			t.Fatalf("TestEncodeDecodeAllMessages: decoded command %s, want %s", decoded.Command(), message.Command())
		}
		if !reflect.DeepEqual(decoded, message) {
			t.Fatalf("TestEncodeDecodeAllMessages: %s round trip mismatch.\ngot: %s\nwant: %s",
				message.Command(), spew.Sdump(decoded), spew.Sdump(message))
		}
	}
}

func TestEncodeTaggedObject(t *testing.T) {
	tests := []struct {
		message  Message
		expected string
	}{
		{NewMsgPing(1700000000), `{"type":"Ping","timestamp":1700000000}`},
		{NewMsgGetPeers(), `{"type":"GetPeers"}`},
		{NewMsgGetBlocks(5, 10), `{"type":"GetBlocks","start_height":5,"count":10}`},
		{NewMsgError(503, "too many peers"), `{"type":"Error","code":503,"message":"too many peers"}`},
	}
	for _, test := range tests {
		encoded, err := Encode(test.message)
		if err != nil {
			t.Fatalf("TestEncodeTaggedObject: Encode unexpectedly failed: %s", err)
		}
		if string(encoded) != test.expected {
			t.Errorf("TestEncodeTaggedObject: got %s, want %s", encoded, test.expected)
		}
	}
}

func TestEncodeHandshakeFieldNames(t *testing.T) {
	encoded, err := Encode(NewMsgHandshake("node", 1, "mainnet"))
	if err != nil {
		t.Fatalf("TestEncodeHandshakeFieldNames: Encode unexpectedly failed: %s", err)
	}
	fields := map[string]interface{}{}
	err = json.Unmarshal(encoded, &fields)
	if err != nil {
		t.Fatalf("TestEncodeHandshakeFieldNames: Unmarshal unexpectedly failed: %s", err)
	}
	for _, name := range []string{"type", "version", "node_id", "best_height", "network"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("TestEncodeHandshakeFieldNames: field %q is missing from %s", name, encoded)
		}
	}
	if len(fields) != 5 {
		t.Errorf("TestEncodeHandshakeFieldNames: got %d fields in %s, want 5", len(fields), encoded)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected error
	}{
		{"not json", `not json`, ErrMalformedMessage},
		{"not an object", `[1,2]`, ErrMalformedMessage},
		{"missing type", `{"timestamp":1}`, ErrMalformedMessage},
		{"unknown type", `{"type":"Version"}`, ErrUnknownMessageType},
		{"bad field type", `{"type":"Ping","timestamp":"soon"}`, ErrMalformedMessage},
		{"truncated", `{"type":"Ping","timestamp":1`, ErrMalformedMessage},
	}
	for _, test := range tests {
		_, err := Decode([]byte(test.body))
		if !errors.Is(err, test.expected) {
			t.Errorf("TestDecodeErrors: %s: got error %v, want %v", test.name, err, test.expected)
		}
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	message, err := Decode([]byte(`{"type":"Pong","timestamp":5,"extra":true}`))
	if err != nil {
		t.Fatalf("TestDecodeIgnoresUnknownFields: Decode unexpectedly failed: %s", err)
	}
	pong, ok := message.(*MsgPong)
	if !ok || pong.Timestamp != 5 {
		t.Fatalf("TestDecodeIgnoresUnknownFields: got %s", spew.Sdump(message))
	}
}

func TestMessageCommandString(t *testing.T) {
	if !strings.HasPrefix(CmdNewBlock.String(), "NewBlock") {
		t.Errorf("TestMessageCommandString: got %s", CmdNewBlock.String())
	}
	if !strings.HasPrefix(MessageCommand(200).String(), "unknown command") {
		t.Errorf("TestMessageCommandString: got %s", MessageCommand(200).String())
	}
}
