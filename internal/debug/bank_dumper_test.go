package debug

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nesmap/internal/memory"
	"nesmap/internal/render"
)

type blankCHR struct{}

func (blankCHR) ReadCHR(uint16) uint8   { return 0 }
func (blankCHR) WriteCHR(uint16, uint8) {}

func testMemory() *memory.PPUMemory {
	mem := memory.NewPPUMemory(blankCHR{}, memory.MirrorVertical)
	mem.Write(0x2000, 0x12)
	mem.Write(0x2400+31, 0xAB)
	mem.Write(0x23C0, 0xFF)
	mem.Write(0x3F00, 0x29)
	return mem
}

func TestWriteBanks(t *testing.T) {
	mem := testMemory()
	dumper := NewBankDumper(t.TempDir())
	dumper.SetBanks(render.BankA, render.BankB)

	var out bytes.Buffer
	if err := dumper.WriteBanks(&out, mem, 42); err != nil {
		t.Fatal(err)
	}
	text := out.String()

	wants := []string{
		"Frame Number: 42",
		fmt.Sprintf("Bank A ($2000) digest %016x", mem.BankDigest(0)),
		"Bank B ($2400)",
		"00: 12 00",
		"Attributes ($23C0):\na0: FF 00",
		"Palette:  29",
	}
	for _, want := range wants {
		if !strings.Contains(text, want) {
			t.Errorf("dump missing %q", want)
		}
	}
	if strings.Contains(text, "Bank C") {
		t.Error("dump includes an unselected bank")
	}

	// Bank B row 0 ends with the byte written at column 31
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "00:") && strings.HasSuffix(line, "AB") {
			return
		}
	}
	t.Error("bank B row 0 does not end with AB")
}

func TestDumpBanksRespectsLimits(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "banks")
	dumper := NewBankDumper(dir)
	mem := testMemory()

	path, err := dumper.DumpBanks(mem, 1)
	if err != nil || path != "" {
		t.Fatalf("disabled dumper wrote %q, %v", path, err)
	}

	if err := dumper.Enable(); err != nil {
		t.Fatal(err)
	}
	dumper.SetMaxDumps(1)

	path, err = dumper.DumpBanks(mem, 7)
	if err != nil {
		t.Fatalf("DumpBanks() error = %v", err)
	}
	if filepath.Base(path) != "banks_000007.txt" {
		t.Errorf("path = %s", path)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("dump file missing or empty: %v", err)
	}

	if path, _ := dumper.DumpBanks(mem, 8); path != "" {
		t.Error("dump written past the limit")
	}
}
