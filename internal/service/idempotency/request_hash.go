package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultKeyTTL задаёт срок хранения ответа по ключу идемпотентности.
const DefaultKeyTTL = 24 * time.Hour

// RequestHash хеширует метод вместе с телом запроса.
// Один ключ с другим телом или другим методом даст другой хеш.
func RequestHash(method string, payload any) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("request is nil")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{':'})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
