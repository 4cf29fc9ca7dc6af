package certificate

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	numberPrefix  = "CERT"
	randomLen     = 8
	base36Symbols = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	NowFunc    = time.Now // mockable
	numberFunc = NewNumber // mockable
)

// NewNumber returns CERT-<YYYY>-<8 random base36 chars>-<unix millis in base36>.
func NewNumber(now time.Time) (string, error) {
	var rnd strings.Builder
	max := big.NewInt(int64(len(base36Symbols)))
	for i := 0; i < randomLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		rnd.WriteByte(base36Symbols[n.Int64()])
	}
	millis := strings.ToUpper(strconv.FormatInt(now.UnixNano()/int64(time.Millisecond), 36))
	return fmt.Sprintf("%s-%d-%s-%s", numberPrefix, now.UTC().Year(), rnd.String(), millis), nil
}
