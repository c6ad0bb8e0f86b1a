package utils

import (
	"carrental/src/bookings"
	"carrental/src/models"
	"carrental/src/types"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/yeqown/go-qrcode"
)

// RequesterIdentity reads the identity the auth middleware resolved.
func RequesterIdentity(ctx *gin.Context) bookings.Identity {
	return bookings.Identity{
		UserID: ctx.GetUint("id"),
		Email:  ctx.GetString("email"),
		Role:   types.Role(ctx.GetString("role")),
	}
}

func BookingToView(booking *models.Booking) types.BookingView {
	view := types.BookingView{
		ID:            booking.ID,
		CarID:         booking.CarID,
		StartDateTime: booking.StartDateTime,
		EndDateTime:   booking.EndDateTime,
		TotalPrice:    booking.TotalPrice,
		Status:        booking.Status,
	}
	if booking.User != nil {
		view.User = &types.UserView{
			ID:    booking.User.ID,
			Name:  booking.User.Name,
			Email: booking.User.Email,
		}
	}
	return view
}

func CarSlug(brand, model string) string {
	return slug.Make(fmt.Sprintf("%s %s", brand, model))
}

// GeneratePickupPass writes an encrypted QR for the booking to the temp
// dir and returns the filename the share route serves it under.
func GeneratePickupPass(booking *models.Booking) (string, error) {
	rawData := map[string]any{
		"bookingId": booking.ID,
		"carId":     booking.CarID,
		"start":     booking.StartDateTime,
	}
	rawBytes, _ := json.Marshal(rawData)

	keyEnv := os.Getenv("API_QRC_SECRET")
	key, err := hex.DecodeString(keyEnv)
	if err != nil {
		log.Printf("Could not read key from string: %s\n", err.Error())
		return "", err
	}
	encryptedMessage, err := EncryptMessage(key, string(rawBytes))
	if err != nil {
		log.Printf("Error encrypting message: %s\n", err.Error())
		return "", err
	}
	qrc, err := qrcode.New(encryptedMessage)
	if err != nil {
		return "", err
	}
	tempdir := os.Getenv("TEMP_DIR")
	filename := fmt.Sprintf("booking-%d-pass", booking.ID)
	filepath := path.Join(tempdir, fmt.Sprintf("%s.jpeg", filename))
	if err = qrc.Save(filepath); err != nil {
		log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
		return "", err
	}
	return filename, nil
}

func EncryptMessage(key []byte, message string) (string, error) {
	plaintext := []byte(message)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	cipherText := gcm.Seal(nonce, nonce, plaintext, nil)
	encodedString := hex.EncodeToString(cipherText)

	return encodedString, nil
}

func DecryptMessage(key []byte, message string) (*string, error) {
	cipherText, err := hex.DecodeString(message)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	decryptedData, err := gcm.Open(nil, cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():], nil)
	if err != nil {
		return nil, err
	}
	decodedString := string(decryptedData)

	return &decodedString, nil
}
