package game

import (
	crand "crypto/rand"
	"math/big"
	"math/rand"
)

// Room codes are short enough to read out loud, so the alphabet drops
// the characters people confuse when typing them back in.
const (
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 4
)

func generateRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(roomCodeAlphabet))))
		if err != nil {
			// fall back to math/rand if crypto fails
			code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
			continue
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(code)
}

// uniqueRoomCode must be called with the registry lock held so the
// collision check stays valid until the room is inserted.
func (g *Registry) uniqueRoomCode() string {
	for {
		code := generateRoomCode()
		if _, taken := g.rooms[code]; !taken {
			return code
		}
	}
}
