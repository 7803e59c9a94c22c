package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	allByteOrders     = []ByteOrder{ByteOrderDefault, ByteOrderLittle, ByteOrderBig}
	allRegisterOrders = []RegisterOrder{RegisterOrderDefault, R0R1R2R3, R3R2R1R0, R1R0R3R2, R2R3R0R1}
)

func allOrders() []Order {
	var out []Order
	for _, bo := range allByteOrders {
		for _, ro := range allRegisterOrders {
			out = append(out, Order{Byte: bo, Register: ro})
		}
	}
	return out
}

func TestReorderSelfInverse(t *testing.T) {
	inputs := [][]byte{
		{0x01, 0x02},
		{0x01, 0x02, 0x03, 0x04},
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
	}
	for _, o := range allOrders() {
		for _, in := range inputs {
			once := o.Reorder(in)
			assert.Len(t, once, len(in))
			assert.Equal(t, in, o.Reorder(once), "%s on %d bytes", o, len(in))
		}
	}
}

func TestReorderLayouts(t *testing.T) {
	const v32 = 0x11223344
	const v64 = 0x1122334455667788

	tests := []struct {
		order  Order
		want32 []byte
		want64 []byte
	}{
		{
			order:  Order{ByteOrderLittle, R0R1R2R3},
			want32: []byte{0x44, 0x33, 0x22, 0x11},
			want64: []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11},
		},
		{
			order:  Order{ByteOrderBig, R3R2R1R0},
			want32: []byte{0x11, 0x22, 0x33, 0x44},
			want64: []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88},
		},
		{
			order:  Order{ByteOrderBig, R0R1R2R3},
			want32: []byte{0x33, 0x44, 0x11, 0x22},
			want64: []byte{0x77, 0x88, 0x55, 0x66, 0x33, 0x44, 0x11, 0x22},
		},
		{
			order:  Order{ByteOrderLittle, R3R2R1R0},
			want32: []byte{0x22, 0x11, 0x44, 0x33},
			want64: []byte{0x22, 0x11, 0x44, 0x33, 0x66, 0x55, 0x88, 0x77},
		},
		{
			order:  Order{ByteOrderLittle, R1R0R3R2},
			want32: []byte{0x22, 0x11, 0x44, 0x33},
			want64: []byte{0x66, 0x55, 0x88, 0x77, 0x22, 0x11, 0x44, 0x33},
		},
		{
			order:  Order{ByteOrderLittle, R2R3R0R1},
			want32: []byte{0x44, 0x33, 0x22, 0x11},
			want64: []byte{0x44, 0x33, 0x22, 0x11, 0x88, 0x77, 0x66, 0x55},
		},
		{
			order:  Order{ByteOrderDefault, RegisterOrderDefault},
			want32: []byte{0x44, 0x33, 0x22, 0x11},
			want64: []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11},
		},
	}

	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			assert.Equal(t, tt.want32, tt.order.encode(v32, 4))
			assert.Equal(t, tt.want64, tt.order.encode(v64, 8))
			assert.Equal(t, uint64(v32), tt.order.decode(tt.want32))
			assert.Equal(t, uint64(v64), tt.order.decode(tt.want64))
		})
	}
}

func TestSixteenBitOnlySwapsBytes(t *testing.T) {
	for _, ro := range allRegisterOrders {
		assert.Equal(t, []byte{0x34, 0x12}, Order{ByteOrderLittle, ro}.encode(0x1234, 2))
		assert.Equal(t, []byte{0x12, 0x34}, Order{ByteOrderBig, ro}.encode(0x1234, 2))
	}
}

func TestNative(t *testing.T) {
	assert.True(t, Order{ByteOrderLittle, R0R1R2R3}.Native())
	assert.True(t, Order{ByteOrderDefault, RegisterOrderDefault}.Native())
	assert.True(t, Order{ByteOrderLittle, RegisterOrderDefault}.Native())
	assert.False(t, Order{ByteOrderBig, R0R1R2R3}.Native())
	assert.False(t, Order{ByteOrderLittle, R3R2R1R0}.Native())
}

func TestSwapText(t *testing.T) {
	assert.Equal(t, []byte("abcde"), Order{Byte: ByteOrderLittle}.swapText([]byte("abcde")))
	assert.Equal(t, []byte("badce"), Order{Byte: ByteOrderBig}.swapText([]byte("abcde")))
	assert.Equal(t, []byte("badc"), Order{Byte: ByteOrderBig, Register: R3R2R1R0}.swapText([]byte("abcd")))
}

func TestParseOrders(t *testing.T) {
	byteTests := map[string]ByteOrder{
		"":        ByteOrderDefault,
		"default": ByteOrderDefault,
		"LITTLE":  ByteOrderLittle,
		"le":      ByteOrderLittle,
		"big":     ByteOrderBig,
		"1":       ByteOrderBig,
	}
	for in, want := range byteTests {
		got, err := ParseByteOrder(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseByteOrder("middle")
	assert.Error(t, err)

	regTests := map[string]RegisterOrder{
		"":         RegisterOrderDefault,
		"r0r1r2r3": R0R1R2R3,
		"R3R2R1R0": R3R2R1R0,
		"2":        R1R0R3R2,
		"R2R3R0R1": R2R3R0R1,
	}
	for in, want := range regTests {
		got, err := ParseRegisterOrder(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err = ParseRegisterOrder("R0R2R1R3")
	assert.Error(t, err)

	for _, o := range allByteOrders {
		got, err := ParseByteOrder(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	for _, o := range allRegisterOrders {
		got, err := ParseRegisterOrder(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	assert.Equal(t, "UNKNOWN(7)", ByteOrder(7).String())
}

func TestOrderEffective(t *testing.T) {
	def := Order{Byte: ByteOrderDefault, Register: RegisterOrderDefault}
	assert.Equal(t, Order{Byte: ByteOrderLittle, Register: R0R1R2R3}, def.Effective())

	big := Order{Byte: ByteOrderBig, Register: R3R2R1R0}
	assert.Equal(t, big, big.Effective())
}
