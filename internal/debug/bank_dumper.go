// Package debug provides video memory dumping utilities
package debug

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"nesmap/internal/memory"
	"nesmap/internal/render"
)

// BankSource is the video memory a dump reads
type BankSource interface {
	Nametable(n int) [memory.NametableSize]uint8
	BankDigest(n int) uint64
	Palette() [memory.PaletteSize]uint8
}

// BankDumper writes nametable banks as hex text files
type BankDumper struct {
	outputDir   string
	dumpEnabled bool
	dumpCount   int
	maxDumps    int
	banks       []render.Bank
}

// NewBankDumper creates a dumper for all four banks
func NewBankDumper(outputDir string) *BankDumper {
	return &BankDumper{
		outputDir: outputDir,
		maxDumps:  10,
		banks:     []render.Bank{render.BankA, render.BankB, render.BankC, render.BankD},
	}
}

// Enable activates dumping
func (bd *BankDumper) Enable() error {
	if err := os.MkdirAll(bd.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %v", err)
	}
	bd.dumpEnabled = true
	return nil
}

// Disable deactivates dumping
func (bd *BankDumper) Disable() {
	bd.dumpEnabled = false
}

// SetMaxDumps sets the maximum number of files written
func (bd *BankDumper) SetMaxDumps(max int) {
	bd.maxDumps = max
}

// SetBanks selects the banks written to each dump
func (bd *BankDumper) SetBanks(banks ...render.Bank) {
	bd.banks = banks
}

// DumpBanks writes one file for the frame and returns its path. Nothing is
// written while disabled or once maxDumps files exist.
func (bd *BankDumper) DumpBanks(src BankSource, frameNum uint64) (string, error) {
	if !bd.dumpEnabled || bd.dumpCount >= bd.maxDumps {
		return "", nil
	}

	filePath := filepath.Join(bd.outputDir, fmt.Sprintf("banks_%06d.txt", frameNum))
	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create bank dump file: %v", err)
	}
	defer file.Close()

	if err := bd.WriteBanks(file, src, frameNum); err != nil {
		return "", fmt.Errorf("failed to write bank dump: %v", err)
	}
	bd.dumpCount++
	return filePath, nil
}

// WriteBanks writes the selected banks: 30 rows of 32 tile bytes, then the
// 64 attribute bytes as 8 rows, then palette RAM
func (bd *BankDumper) WriteBanks(w io.Writer, src BankSource, frameNum uint64) error {
	out := bufio.NewWriter(w)

	fmt.Fprintf(out, "Video Memory Dump\n")
	fmt.Fprintf(out, "Frame Number: %d\n", frameNum)
	fmt.Fprintf(out, "=================\n")

	for _, bank := range bd.banks {
		n := int(bank)
		data := src.Nametable(n)
		fmt.Fprintf(out, "\nBank %v ($%04X) digest %016x\n", bank, bank.Nametable(), src.BankDigest(n))

		for row := 0; row < memory.AttributeBase/32; row++ {
			fmt.Fprintf(out, "%02d:", row)
			for _, b := range data[row*32 : row*32+32] {
				fmt.Fprintf(out, " %02X", b)
			}
			out.WriteByte('\n')
		}

		fmt.Fprintf(out, "Attributes ($%04X):\n", bank.Attributes())
		for row := 0; row < 8; row++ {
			fmt.Fprintf(out, "a%d:", row)
			for _, b := range data[memory.AttributeBase+row*8 : memory.AttributeBase+row*8+8] {
				fmt.Fprintf(out, " %02X", b)
			}
			out.WriteByte('\n')
		}
	}

	palette := src.Palette()
	fmt.Fprintf(out, "\nPalette:")
	for i, c := range palette {
		if i%4 == 0 {
			out.WriteByte(' ')
		}
		fmt.Fprintf(out, " %02X", c)
	}
	out.WriteByte('\n')

	return out.Flush()
}
