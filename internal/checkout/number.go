package checkout

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// orderNumberAlphabet drops 0, O, 1 and I so numbers survive being read aloud.
const (
	orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	orderNumberSuffix   = 8
)

type numberGenerator func(now time.Time) (string, error)

// randomOrderNumber returns ORD-YYYYMMDD-XXXXXXXX.
func randomOrderNumber(now time.Time) (string, error) {
	base := big.NewInt(int64(len(orderNumberAlphabet)))
	suffix := make([]byte, orderNumberSuffix)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("order number entropy: %w", err)
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix), nil
}

func sellerOrderNumber(orderNumber string, n int) string {
	return fmt.Sprintf("%s-%d", orderNumber, n)
}
