package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	barcodeLength     = 13
	productCodeLength = 8
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeGenerator produces the barcode and product code of a new variant
type CodeGenerator interface {
	Barcode() (string, error)
	ProductCode() (string, error)
}

type randomCodes struct{}

// NewRandomCodes returns a CodeGenerator drawing from crypto/rand
func NewRandomCodes() CodeGenerator {
	return randomCodes{}
}

func (randomCodes) Barcode() (string, error) {
	return randomCode(barcodeLength)
}

func (randomCodes) ProductCode() (string, error) {
	return randomCode(productCodeLength)
}

func randomCode(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
