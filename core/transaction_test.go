package core

import (
	"testing"

	"github.com/xiaolou86/ckb/util"
)

// Fixtures follow the teacher's table-driven, raw-byte-literal style
// (holys-copernicus/model's Interpreter_test.go), adapted from the
// scriptSig input model there to the cell/outpoint model this pool runs
// on: each fixture is a hand-built Transaction plus the virtual size and
// coinbase flag it is expected to carry.
var txFixtures = []struct {
	name       string
	tx         Transaction
	wantSize   uint64
	wantCoinbase bool
}{
	{
		name: "single-input-single-output",
		tx: Transaction{
			Version: 0,
			Inputs: []CellInput{
				{
					PreviousOutput: OutPoint{
						TxHash: util.Hash{
							0x03, 0x2e, 0x38, 0xe9, 0xc0, 0xa8, 0x4c, 0x60,
							0x46, 0xd6, 0x87, 0xd1, 0x05, 0x56, 0xdc, 0xac,
							0xc4, 0x1d, 0x27, 0x5e, 0xc5, 0x5f, 0xc0, 0x07,
							0x79, 0xac, 0x88, 0xfd, 0xf3, 0x57, 0xa1, 0x87,
						},
						Index: 0,
					},
					Since: 0,
				},
			},
			Outputs: []CellOutput{
				{
					Capacity: 0x2123e300, // 556000000 shannons
					Lock: &Script{
						CodeHash: util.Hash{0x01},
						HashType: 1,
						Args:     []byte{0xc3, 0x98, 0xef, 0xa9},
					},
				},
			},
			OutputsData: [][]byte{{}},
		},
		wantSize:     4 + 44 + 8 + 4 + 33,
		wantCoinbase: false,
	},
	{
		name: "coinbase",
		tx: Transaction{
			Version: 0,
			Inputs: []CellInput{
				{PreviousOutput: OutPoint{TxHash: util.Hash{}, Index: 0xffffffff}},
			},
			Outputs: []CellOutput{{Capacity: 1000}},
		},
		wantSize:     4 + 44 + 8,
		wantCoinbase: true,
	},
}

func TestTransactionShape(t *testing.T) {
	for _, tt := range txFixtures {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.SerializeSize(); got != tt.wantSize {
				t.Fatalf("SerializeSize() = %d, want %d", got, tt.wantSize)
			}
			if got := tt.tx.IsCoinBase(); got != tt.wantCoinbase {
				t.Fatalf("IsCoinBase() = %v, want %v", got, tt.wantCoinbase)
			}
		})
	}
}

func TestOutPointRoundTrip(t *testing.T) {
	tx := &txFixtures[0].tx
	tx.Hash = util.Hash{0xaa, 0xbb}
	pts := tx.OutputPoints()
	if len(pts) != 1 || pts[0].TxHash != tx.Hash || pts[0].Index != 0 {
		t.Fatalf("OutputPoints() = %+v, unexpected", pts)
	}
	in := tx.InputPoints()
	if len(in) != 1 || in[0].Index != 0 {
		t.Fatalf("InputPoints() = %+v, unexpected", in)
	}
}

func TestScriptEqual(t *testing.T) {
	a := &Script{CodeHash: util.Hash{1}, HashType: 1, Args: []byte{1, 2, 3}}
	b := &Script{CodeHash: util.Hash{1}, HashType: 1, Args: []byte{1, 2, 3}}
	c := &Script{CodeHash: util.Hash{2}, HashType: 1, Args: []byte{1, 2, 3}}
	if !a.Equal(b) {
		t.Fatal("expected equal scripts to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected differing code hashes to compare unequal")
	}
	if a.Equal(nil) {
		t.Fatal("expected nil comparison to be unequal")
	}
}

func TestShortIDDerivation(t *testing.T) {
	tx := Transaction{Hash: util.Hash{0x01, 0x02, 0x03}}
	id1 := tx.ShortID()
	id2 := util.ShortIDFromHash(tx.Hash)
	if id1 != id2 {
		t.Fatalf("ShortID() = %x, want %x", id1, id2)
	}
	other := Transaction{Hash: util.Hash{0x04}}
	if tx.ShortID() == other.ShortID() {
		t.Fatal("expected distinct hashes to produce distinct short ids")
	}
}
