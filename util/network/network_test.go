package network

import (
	"reflect"
	"testing"
)

func TestNormalizeAddresses(t *testing.T) {
	addresses, err := NormalizeAddresses([]string{"127.0.0.1", "127.0.0.1:18444", "example.com:1"}, "18444")
	if err != nil {
		t.Fatalf("TestNormalizeAddresses: NormalizeAddresses unexpectedly failed: %s", err)
	}
	expected := []string{"127.0.0.1:18444", "example.com:1"}
	if !reflect.DeepEqual(addresses, expected) {
		t.Fatalf("TestNormalizeAddresses: expected %v but got %v", expected, addresses)
	}
}

func TestSplitAddress(t *testing.T) {
	host, port, err := SplitAddress("10.0.0.1:18444")
	if err != nil {
		t.Fatalf("TestSplitAddress: SplitAddress unexpectedly failed: %s", err)
	}
	if host != "10.0.0.1" || port != 18444 {
		t.Fatalf("TestSplitAddress: unexpected result %s %d", host, port)
	}

	_, _, err = SplitAddress("10.0.0.1:99999")
	if err == nil {
		t.Fatalf("TestSplitAddress: out of range port unexpectedly accepted")
	}
	_, _, err = SplitAddress("10.0.0.1")
	if err == nil {
		t.Fatalf("TestSplitAddress: address without port unexpectedly accepted")
	}
}
