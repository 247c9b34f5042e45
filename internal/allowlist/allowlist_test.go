package allowlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_AddressColumn(t *testing.T) {
	in := "name,address,abi\nUSDT,0xDAC17F958D2ee523a2206206994597C13D831ec7,true\nWETH, 0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2 ,true\n"

	s, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if !s.Contains("0xdac17f958d2ee523a2206206994597c13d831ec7") {
		t.Error("lowercased USDT address missing")
	}
	if !s.Contains("0xC02AAA39B223FE8D0A0E5C4F27EAD9083C756CC2") {
		t.Error("Contains should normalize its argument")
	}
}

func TestParse_HeaderlessUsesFirstColumn(t *testing.T) {
	s, err := Parse(strings.NewReader("0xaaa,foo\n0xbbb\n\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got := s.Sorted()
	if len(got) != 2 || got[0] != "0xaaa" || got[1] != "0xbbb" {
		t.Errorf("Sorted = %v", got)
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse(strings.NewReader("address\n0x\"abc\n")); err == nil {
		t.Error("expected error for malformed CSV")
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.csv")
	if err := os.WriteFile(path, []byte("address\n0xABC\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if !s.Contains("0xabc") {
		t.Error("0xabc missing")
	}

	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNilSet(t *testing.T) {
	var s Set
	if s.Contains("0xabc") || s.Len() != 0 {
		t.Error("nil set should be empty")
	}
}
