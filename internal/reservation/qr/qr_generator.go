package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"bus-reservation/internal/models"

	"github.com/skip2/go-qrcode"
)

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// confirmationPayload is what boarding staff scan: enough to look the
// reservation up and match the passenger, nothing financial.
type confirmationPayload struct {
	ReservationID string `json:"reservation_id"`
	TripID        string `json:"trip_id"`
	SeatID        string `json:"seat_id"`
	PassengerName string `json:"passenger_name"`
}

func (q *QRGenerator) GenerateConfirmationQR(res models.Reservation) ([]byte, error) {
	data, err := json.Marshal(confirmationPayload{
		ReservationID: res.ReservationID,
		TripID:        res.TripID,
		SeatID:        res.SeatID,
		PassengerName: res.PassengerName,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, q.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
