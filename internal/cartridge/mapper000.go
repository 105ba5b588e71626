package cartridge

// Mapper000 implements the NROM pattern table layout: the first 8KB of CHR
// mapped directly at PPU $0000-$1FFF, writable only when the image has CHR RAM.
type Mapper000 struct {
	cart *Cartridge
}

// NewMapper000 creates a new NROM mapper
func NewMapper000(cart *Cartridge) *Mapper000 {
	return &Mapper000{cart: cart}
}

// ReadCHR reads from CHR ROM/RAM
func (m *Mapper000) ReadCHR(address uint16) uint8 {
	if address < CHRSize && int(address) < len(m.cart.chr) {
		return m.cart.chr[address]
	}
	return 0
}

// WriteCHR writes to CHR RAM. Writes to CHR ROM are ignored.
func (m *Mapper000) WriteCHR(address uint16, value uint8) {
	if m.cart.hasCHRRAM && address < CHRSize && int(address) < len(m.cart.chr) {
		m.cart.chr[address] = value
	}
}
