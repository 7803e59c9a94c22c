// Package address implements Modbus data addresses.
//
// An Address is a (bank, offset) pair. Three textual notations are
// understood:
//
//	Modbus        400001, 000001, 100001, 300001 (bank*100000 + offset + 1)
//	IEC-61131     %MW0, %Q0, %I0, %IW0
//	IEC-61131 hex %MW0000h, %Q0000h, %I0000h, %IW0000h
//
// Callers that accept an address in several forms (integer, string or
// Address) resolve it once with Resolve; everything past that boundary
// works on the canonical Address.
//
// The zero Address is invalid and reports BankUnknown. A constructed
// Address is either fully valid or the zero value.
package address
