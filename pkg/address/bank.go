package address

import (
	"fmt"
	"strings"
)

// Bank identifies one of the four Modbus memory areas.
type Bank uint8

const (
	// BankUnknown marks an invalid address.
	BankUnknown Bank = iota
	// BankCoil is the coil area (0x, read/write bits).
	BankCoil
	// BankDiscreteInput is the discrete input area (1x, read-only bits).
	BankDiscreteInput
	// BankInputRegister is the input register area (3x, read-only words).
	BankInputRegister
	// BankHoldingRegister is the holding register area (4x, read/write words).
	BankHoldingRegister
)

// Banks lists the valid banks in Modbus code order.
var Banks = []Bank{BankCoil, BankDiscreteInput, BankInputRegister, BankHoldingRegister}

// Code returns the Modbus memory type code (0, 1, 3 or 4), or -1 for
// BankUnknown.
func (b Bank) Code() int {
	switch b {
	case BankCoil:
		return 0
	case BankDiscreteInput:
		return 1
	case BankInputRegister:
		return 3
	case BankHoldingRegister:
		return 4
	default:
		return -1
	}
}

// BankFromCode maps a Modbus memory type code to a Bank.
func BankFromCode(code int) (Bank, error) {
	switch code {
	case 0:
		return BankCoil, nil
	case 1:
		return BankDiscreteInput, nil
	case 3:
		return BankInputRegister, nil
	case 4:
		return BankHoldingRegister, nil
	default:
		return BankUnknown, fmt.Errorf("%w: %d (must be 0, 1, 3 or 4)", ErrInvalidBank, code)
	}
}

// Valid reports whether b is one of the four Modbus banks.
func (b Bank) Valid() bool {
	return b >= BankCoil && b <= BankHoldingRegister
}

// BitAddressed reports whether the bank is addressed in bits.
func (b Bank) BitAddressed() bool {
	return b == BankCoil || b == BankDiscreteInput
}

// Suffix returns the segment suffix used for the bank ("mem0x", ...).
func (b Bank) Suffix() string {
	if !b.Valid() {
		return ""
	}
	return fmt.Sprintf("mem%dx", b.Code())
}

// String returns the bank name.
func (b Bank) String() string {
	switch b {
	case BankCoil:
		return "COIL"
	case BankDiscreteInput:
		return "DISCRETE_INPUT"
	case BankInputRegister:
		return "INPUT_REGISTER"
	case BankHoldingRegister:
		return "HOLDING_REGISTER"
	default:
		return "UNKNOWN"
	}
}

// ParseBank accepts a bank name, its Modbus code ("0".."4"), its area name
// ("0x", "4x") or its IEC-61131 prefix ("%Q", "%MW"). Case-insensitive.
func ParseBank(s string) (Bank, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coil", "coils", "0", "0x", "%q":
		return BankCoil, nil
	case "discrete", "discrete_input", "discreteinput", "1", "1x", "%i":
		return BankDiscreteInput, nil
	case "input", "input_register", "inputregister", "3", "3x", "%iw":
		return BankInputRegister, nil
	case "holding", "holding_register", "holdingregister", "4", "4x", "%mw":
		return BankHoldingRegister, nil
	}
	return BankUnknown, fmt.Errorf("%w: %q", ErrInvalidBank, s)
}
