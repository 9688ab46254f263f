package memory

import "github.com/kstenerud/dmgboy/dmg/util"

const titleLength = 11

const (
	entryPointAddress       = 0x100
	logoAddress             = 0x104
	titleAddress            = 0x134
	manufacturerCodeAddress = 0x13F
	cgbFlagAddress          = 0x143
	newLicenseCodeAddress   = 0x144
	sgbFlagAddress          = 0x146
	cartridgeTypeAddress    = 0x147
	romSizeAddress          = 0x148
	ramSizeAddress          = 0x149
	destinationCodeAddress  = 0x14A
	oldLicenseCodeAddress   = 0x14B
	versionNumberAddress    = 0x14C
	headerChecksumAddress   = 0x14D
	globalChecksumAddress   = 0x14E
)

// MBCType identifies which memory bank controller (if any) a cartridge's
// header declares, independent of the battery/RTC/rumble extras it also
// carries.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// classifyMBC maps the raw 0x147 cartridge-type byte onto the controller
// kind plus the battery/RTC/rumble extras present on that chip variant.
func classifyMBC(cartType uint8) (kind MBCType, hasBattery, hasRTC, hasRumble bool) {
	switch cartType {
	case 0x00, 0x08, 0x09: // ROM ONLY, ROM+RAM, ROM+RAM+BATTERY
		return NoMBCType, cartType == 0x09, false, false
	case 0x01, 0x02, 0x03:
		return MBC1Type, cartType == 0x03, false, false
	case 0x05, 0x06:
		return MBC2Type, cartType == 0x06, false, false
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		hasRTC := cartType == 0x0F || cartType == 0x10
		hasBattery := cartType == 0x0F || cartType == 0x10 || cartType == 0x13
		return MBC3Type, hasBattery, hasRTC, false
	case 0x19, 0x1A, 0x1B:
		return MBC5Type, cartType == 0x1B, false, false
	case 0x1C, 0x1D, 0x1E:
		return MBC5Type, cartType == 0x1E, false, true
	default:
		return MBCUnknownType, false, false, false
	}
}

// ramBanksFromHeader maps the 0x149 RAM-size byte to a bank count, each bank
// being 8KB. Cartridges using MBC2's built-in RAM report 0 here since that
// RAM lives inside the MBC chip rather than behind the header's RAM field.
func ramBanksFromHeader(ramSizeByte uint8) uint8 {
	switch ramSizeByte {
	case 0x00:
		return 0
	case 0x01:
		return 1 // 2KB, historical/unused value; treated as a single partial bank
	case 0x02:
		return 1 // 8KB
	case 0x03:
		return 4 // 32KB
	case 0x04:
		return 16 // 128KB
	case 0x05:
		return 8 // 64KB
	default:
		return 0
	}
}

type Cartridge struct {
	data           []byte
	title          string
	headerChecksum uint16
	globalChecksum uint16
	version        uint8
	cartType       uint8
	romSize        uint8
	ramSize        uint8

	mbcType      MBCType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	ramBankCount uint8
}

// NewCartridge creates an empty cartridge, useful only for debugging purposes.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x10000),
		mbcType: NoMBCType,
	}
}

// MinimumROMSize is the smallest byte count that contains a complete
// cartridge header (through the global checksum at 0x14E-0x14F). A file
// shorter than this can't be decoded and should be rejected before it ever
// reaches NewCartridgeWithData, which indexes into the header unconditionally.
const MinimumROMSize = 0x150

// HasValidHeaderSize reports whether data is long enough to contain a full
// cartridge header.
func HasValidHeaderSize(data []byte) bool {
	return len(data) >= MinimumROMSize
}

// NewCartridgeWithData initializes a new Cartridge from a slice of bytes,
// decoding the header fields needed to pick and configure the right MBC.
// Callers must check HasValidHeaderSize first; this function indexes into
// the header unconditionally.
func NewCartridgeWithData(bytes []byte) *Cartridge {
	titleBytes := bytes[titleAddress : titleAddress+titleLength]
	cartType := bytes[cartridgeTypeAddress]
	ramSizeByte := bytes[ramSizeAddress]

	mbcType, hasBattery, hasRTC, hasRumble := classifyMBC(cartType)

	ramBankCount := ramBanksFromHeader(ramSizeByte)
	if mbcType == MBC2Type {
		// MBC2's 512x4-bit RAM is built into the chip, not bank-switched
		// external RAM, so the header's RAM-size byte doesn't apply.
		ramBankCount = 0
	}

	cart := &Cartridge{
		data:           make([]byte, len(bytes)),
		title:          cleanGameboyTitle(titleBytes),
		headerChecksum: util.CombineBytes(bytes[headerChecksumAddress+1], bytes[headerChecksumAddress]),
		globalChecksum: util.CombineBytes(bytes[globalChecksumAddress+1], bytes[globalChecksumAddress]),
		version:        bytes[versionNumberAddress],
		cartType:       cartType,
		romSize:        bytes[romSizeAddress],
		ramSize:        ramSizeByte,
		mbcType:        mbcType,
		hasBattery:     hasBattery,
		hasRTC:         hasRTC,
		hasRumble:      hasRumble,
		ramBankCount:   ramBankCount,
	}

	copy(cart.data, bytes)

	return cart
}

// Title returns the cleaned-up game title from the cartridge header.
func (c Cartridge) Title() string {
	return c.title
}

// HasBattery reports whether this cartridge's RAM (or RTC) survives a power
// cycle and should be persisted to a .sav file.
func (c Cartridge) HasBattery() bool {
	return c.hasBattery
}

// ReadByte reads a byte at the specified address. Does not check bounds, so the caller must make sure the
// address is valid for the cartridge.
func (c Cartridge) ReadByte(addr uint16) uint8 {
	return c.data[addr]
}

// WriteByte writes nothing: it returns the byte already stored at the specified address. Cartridge RAM
// writes and bank switching go through the MBC, not through this method.
func (c Cartridge) WriteByte(addr uint16, value uint8) uint8 {
	return c.data[addr]
}
