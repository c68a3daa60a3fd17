// Package field provides the scalar-field arithmetic shared by the token
// contract, the allowance accumulator, and the proof circuits.
//
// All on-chain values (addresses, commitments, record hashes) are elements
// of the BN254 scalar field, and all hashing uses MiMC so that the native
// computation matches the in-circuit gnark implementation bit for bit.
package field

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/holiman/uint256"
)

// Element is a BN254 scalar field element.
type Element = fr.Element

// ErrAmountRange is returned when a token amount does not fit in the field.
var ErrAmountRange = errors.New("field: amount exceeds field modulus")

// Hash computes the MiMC hash of the given elements.
// The same sequence of writes reproduces gnark's std/hash/mimc in-circuit.
func Hash(elems ...Element) Element {
	h := mimc.NewMiMC()
	for i := range elems {
		b := elems[i].Bytes()
		h.Write(b[:])
	}
	var out Element
	out.SetBytes(h.Sum(nil))
	return out
}

// HashBytes hashes arbitrary bytes by packing them into field elements
// 31 bytes at a time (always below the modulus) and folding with MiMC.
func HashBytes(data []byte) Element {
	const chunk = 31
	var elems []Element
	for len(data) > 0 {
		n := chunk
		if len(data) < n {
			n = len(data)
		}
		var e Element
		e.SetBytes(data[:n])
		elems = append(elems, e)
		data = data[n:]
	}
	if len(elems) == 0 {
		var zero Element
		elems = append(elems, zero)
	}
	return Hash(elems...)
}

// FromAmount converts a token amount to a field element.
// Amounts are capped well below the ~254-bit modulus; anything larger
// cannot be represented as a single element and is rejected.
func FromAmount(a *uint256.Int) (Element, error) {
	var e Element
	if a.BitLen() > 250 {
		return e, ErrAmountRange
	}
	b := a.Bytes32()
	e.SetBytes(b[:])
	return e, nil
}

// FromUint64 converts a small integer to a field element.
func FromUint64(v uint64) Element {
	var e Element
	e.SetUint64(v)
	return e
}

// Hex renders an element as a 0x-prefixed 64-digit hex string.
func Hex(e Element) string {
	b := e.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

// FromHex parses a 0x-prefixed hex string produced by Hex.
func FromHex(s string) (Element, error) {
	var e Element
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return e, fmt.Errorf("field: parse hex: %w", err)
	}
	if len(b) > fr.Bytes {
		return e, fmt.Errorf("field: hex value too long (%d bytes)", len(b))
	}
	e.SetBytes(b)
	return e, nil
}
