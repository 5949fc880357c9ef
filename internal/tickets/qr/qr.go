package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"

	"github.com/jotalevi/TheFirm/internal/models"
)

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// payload is what a gate scanner presents back to the validate
// endpoint: the ticket id plus a secret derived from the ticket data.
type payload struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// GenerateEncryptedQR encodes the ticket's redemption payload as an
// AES-encrypted QR image.
func (g *Generator) GenerateEncryptedQR(ticket models.Ticket) ([]byte, error) {
	data, err := json.Marshal(payload{
		Key:    ticket.ID,
		Secret: g.TicketSecret(ticket),
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// TicketSecret derives the verification secret for a ticket, keyed
// with the service secret. Only storage-stable fields go into the MAC:
// timestamps lose sub-microsecond precision on the round trip through
// the database, so they must not feed the hash.
func (g *Generator) TicketSecret(ticket models.Ticket) string {
	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%s-%d", ticket.ID, ticket.TierID)
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))[:20]
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
