// Package auth implements the two RFB security types this server
// supports: None (type 1) and VNC Authentication (type 2, DES-challenge
// per RFC 6143 §7.2.2). TLS/VeNCrypt and other security types are out of
// scope (spec.md Non-goals).
package auth

import (
	"crypto/des" //nolint:gosec // DES is mandated by the VNC authentication wire format, RFC 6143 §7.2.2.
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/brightloom/vncd/rfb"
	"github.com/brightloom/vncd/rfbserr"
)

// Authenticator performs the server side of one security type's
// handshake over an already-connected, already-version-negotiated
// stream.
type Authenticator interface {
	// SecurityType returns the RFB security type identifier.
	SecurityType() uint8
	// Authenticate runs the handshake. A nil error means the peer is
	// authenticated; any error means the connection must be closed
	// (the caller is responsible for emitting SecurityResult/reason
	// bytes before doing so, since the exact framing differs by
	// protocol version).
	Authenticate(rw ReadWriter) error
}

// ReadWriter is the minimal interface Authenticate needs; satisfied by
// net.Conn and by the multiplexed/WebSocket-tunneled streams alike.
type ReadWriter interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// None implements the "None" security type: no handshake beyond the
// security negotiation itself.
type None struct{}

func (None) SecurityType() uint8            { return rfb.SecurityNone }
func (None) Authenticate(ReadWriter) error   { return nil }

// VNCPassword implements VNC Authentication (security type 2): a
// 16-byte DES-ECB challenge/response keyed on the configured password,
// bit-reversed per byte as RFC 6143 requires.
type VNCPassword struct {
	Password string
}

func (VNCPassword) SecurityType() uint8 { return rfb.SecurityVNCAuth }

// Authenticate generates a challenge, sends it, reads the client's
// response, and compares it in constant time against the expected DES
// encryption of the challenge.
func (v VNCPassword) Authenticate(rw ReadWriter) error {
	var challenge [rfb.VNCChallengeSize]byte
	if _, err := rand.Read(challenge[:]); err != nil {
		return rfbserr.New("auth.VNCPassword.Authenticate", rfbserr.Authentication, "failed to generate challenge", err)
	}
	if err := rfb.SendChallenge(rw, challenge); err != nil {
		return rfbserr.New("auth.VNCPassword.Authenticate", rfbserr.Transport, "failed to send challenge", err)
	}

	response, err := rfb.ReadChallengeResponse(rw)
	if err != nil {
		return rfbserr.New("auth.VNCPassword.Authenticate", rfbserr.Transport, "failed to read challenge response", err)
	}

	expected, err := EncryptChallenge(v.Password, challenge)
	if err != nil {
		return rfbserr.New("auth.VNCPassword.Authenticate", rfbserr.Authentication, "failed to compute expected response", err)
	}

	if subtle.ConstantTimeCompare(expected[:], response[:]) != 1 {
		return rfbserr.New("auth.VNCPassword.Authenticate", rfbserr.Authentication, "challenge response mismatch", nil)
	}
	return nil
}

// desKeySize is the fixed 8-byte DES key size; the VNC password is
// truncated or zero-padded to this length.
const desKeySize = 8

// EncryptChallenge computes the VNC authentication response: the
// password (truncated/zero-padded to 8 bytes, each byte bit-reversed) is
// used as a DES-ECB key to encrypt the two 8-byte halves of challenge.
func EncryptChallenge(password string, challenge [rfb.VNCChallengeSize]byte) ([rfb.VNCChallengeSize]byte, error) {
	var result [rfb.VNCChallengeSize]byte

	key := make([]byte, desKeySize)
	pwBytes := []byte(password)
	n := len(pwBytes)
	if n > desKeySize {
		n = desKeySize
	}
	for i := 0; i < desKeySize; i++ {
		if i < n {
			key[i] = reverseBits(pwBytes[i])
		}
	}

	block, err := des.NewCipher(key) //nolint:gosec // mandated by the protocol.
	if err != nil {
		return result, fmt.Errorf("auth: create DES cipher: %w", err)
	}
	block.Encrypt(result[0:desKeySize], challenge[0:desKeySize])
	block.Encrypt(result[desKeySize:], challenge[desKeySize:])
	return result, nil
}

// reverseBitsTable is the VNC "bit-swap" lookup: each key byte has its
// bits reversed before use as a DES key byte.
var reverseBitsTable = buildReverseBitsTable()

func buildReverseBitsTable() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		b := byte(i)
		var r byte
		for bit := 0; bit < 8; bit++ {
			r <<= 1
			r |= b & 1
			b >>= 1
		}
		t[i] = r
	}
	return t
}

func reverseBits(b byte) byte { return reverseBitsTable[b] }
