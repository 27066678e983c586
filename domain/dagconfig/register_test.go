package dagconfig

import (
	"testing"

	"github.com/pkg/errors"
)

func TestRegister(t *testing.T) {
	tests := []struct {
		name   string
		params *Params
		err    error
	}{
		{name: "duplicate mainnet", params: &MainnetParams, err: ErrDuplicateNet},
		{name: "duplicate testnet", params: &TestnetParams, err: ErrDuplicateNet},
		{name: "duplicate devnet", params: &DevnetParams, err: ErrDuplicateNet},
		{name: "new network", params: &Params{Name: "mocknet", MinDifficulty: 3}, err: nil},
		{name: "duplicate new network", params: &Params{Name: "mocknet"}, err: ErrDuplicateNet},
	}

	for _, test := range tests {
		err := Register(test.params)
		if !errors.Is(err, test.err) {
			t.Fatalf("TestRegister: %s: expected error %v but got %v", test.name, test.err, err)
		}
	}

	params, err := ParamsByName("mocknet")
	if err != nil {
		t.Fatalf("TestRegister: ParamsByName unexpectedly failed: %s", err)
	}
	if params.MinDifficulty != 3 {
		t.Fatalf("TestRegister: ParamsByName returned the wrong network: %+v", params)
	}

	_, err = ParamsByName("nosuchnet")
	if !errors.Is(err, ErrUnknownNet) {
		t.Fatalf("TestRegister: expected ErrUnknownNet but got %v", err)
	}
}

func TestDefaultParams(t *testing.T) {
	if MainnetParams.MinDifficulty != 1000 {
		t.Errorf("TestDefaultParams: unexpected mainnet minimum difficulty %v", MainnetParams.MinDifficulty)
	}
	if TestnetParams.MinDifficulty != 1 {
		t.Errorf("TestDefaultParams: unexpected testnet minimum difficulty %v", TestnetParams.MinDifficulty)
	}
	if TestnetParams.DefaultPort != "18444" {
		t.Errorf("TestDefaultParams: unexpected testnet port %s", TestnetParams.DefaultPort)
	}

	address, err := TestnetParams.NormalizePeerAddress("127.0.0.1")
	if err != nil {
		t.Fatalf("TestDefaultParams: NormalizePeerAddress unexpectedly failed: %s", err)
	}
	if address != "127.0.0.1:18444" {
		t.Errorf("TestDefaultParams: unexpected normalized address %s", address)
	}
}
