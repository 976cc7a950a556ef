package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing означает, что запрос принят и ещё обрабатывается.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone означает, что запрос завершён успешно и ответ сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed означает, что обработка завершилась ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// MaxIdempotencyKeyLength ограничивает длину ключа, присланного клиентом.
const MaxIdempotencyKeyLength = 255

// DefaultIdempotencyTTL используется, когда хранилищу не передали срок жизни.
const DefaultIdempotencyTTL = 24 * time.Hour

var (
	// ErrIdempotencyKeyRequired это пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = fmt.Errorf("%w: idempotency key is required", ErrInvalidArgument)
	// ErrIdempotencyKeyInvalid это слишком длинный ключ или ключ с непечатными символами.
	ErrIdempotencyKeyInvalid = fmt.Errorf("%w: idempotency key must be 1-%d printable ASCII characters", ErrInvalidArgument, MaxIdempotencyKeyLength)
	// ErrIdempotencyRequestHashRequired это пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound это ключ не найден или его срок истёк.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists это ключ уже зарегистрирован с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch это ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
)

// IdempotencyRecord хранит состояние обработки запроса с idempotency-key.
// Для HTTP ResponseStatus содержит HTTP-код, для gRPC код status.
type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	ResponseBody   []byte
	ResponseStatus int
	Status         IdempotencyStatus
	TTLAt          time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Finished сообщает, что ответ сохранён и его можно повторить.
func (s IdempotencyStatus) Finished() bool {
	return s == IdempotencyStatusDone || s == IdempotencyStatusFailed
}

// Expired сообщает, что срок жизни записи истёк к моменту now.
// Просроченная запись ведёт себя как отсутствующая, даже если очистка её ещё не удалила.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}

// Clone возвращает копию записи с собственным буфером ответа.
func (r IdempotencyRecord) Clone() IdempotencyRecord {
	r.ResponseBody = append([]byte(nil), r.ResponseBody...)
	return r
}

// NormalizeIdempotencyKey обрезает пробелы и проверяет ключ.
func NormalizeIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrIdempotencyKeyRequired
	}
	if len(key) > MaxIdempotencyKeyLength {
		return "", ErrIdempotencyKeyInvalid
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x20 || key[i] > 0x7e {
			return "", ErrIdempotencyKeyInvalid
		}
	}
	return key, nil
}

// IsIdempotencyConflict сообщает, что ключ уже использован.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
