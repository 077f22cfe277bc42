package app

import (
	"crypto/rand"
	"math/big"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const DefaultCodeLength = 6

// CodeGenerator produces invite code candidates. Uniqueness is checked by the registry.
type CodeGenerator interface {
	Generate() string
}

type RandomCodes struct {
	Length int
}

func (g RandomCodes) Generate() string {
	n := g.Length
	if n <= 0 {
		n = DefaultCodeLength
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, n)
	for i := range out {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		out[i] = codeAlphabet[k.Int64()]
	}
	return string(out)
}
