package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateOrderNumber returns ORD-<base36 unix millis>-<4 random base36>.
func GenerateOrderNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "ORD-" + ts + "-" + RandomString(4, base36)
}

// GenerateTransactionRef returns TXN-<upper-case uuid v4>.
func GenerateTransactionRef() string {
	return "TXN-" + strings.ToUpper(uuid.NewString())
}

// RandomString draws n characters from alphabet using crypto/rand.
func RandomString(n int, alphabet string) string {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			idx = big.NewInt(time.Now().UnixNano() % int64(len(alphabet)))
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b)
}
