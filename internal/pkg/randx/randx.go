/*
Package randx provides functions for generating cryptographically secure random strings and unique identifiers.

It is used to tag optimistic chat placeholders with temporary message ids and to generate
the state parameter of the Google OAuth authorization-code flow.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// OAuthStateLength is the fixed length of a generated OAuth state value.
	OAuthStateLength = 24

	// TempIDPrefix marks message ids that were generated locally and never confirmed by the server.
	TempIDPrefix = "temp-"
)

// Base62 returns a random Base62 string of the given length using crypto/rand.
func Base62(length int) (string, error) {
	result := make([]byte, length)

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// OAuthState generates the opaque state value sent with an OAuth authorization request.
func OAuthState() (string, error) {
	return Base62(OAuthStateLength)
}

// TempMessageID generates the temporary id of an optimistic chat placeholder.
func TempMessageID() string {
	return TempIDPrefix + uuid.New().String()
}

// IsTempID reports whether id was produced by TempMessageID.
func IsTempID(id string) bool {
	if !strings.HasPrefix(id, TempIDPrefix) {
		return false
	}

	_, err := uuid.Parse(id[len(TempIDPrefix):])
	return err == nil
}
