package main

import (
	"carrental/src/db"
	"carrental/src/lib"
	"carrental/src/models"
	"carrental/src/types"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

const refreshTokenTTL = 7 * 24 * time.Hour

func generateJWT(user *models.User) (string, error) {
	claims := types.Claims{
		Name: user.Name,
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(int(user.ID)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

func sendVerificationMail(user *models.User, token string) {
	appHost := os.Getenv("APP_HOST")
	link := fmt.Sprintf("%s/verify-email?token=%s", appHost, token)
	err := lib.SendMail(&lib.SendMailInput{
		From:     os.Getenv("MAIL_FROM"),
		FromName: "Car Rental",
		To:       []string{user.Email},
		Subject:  "Verify your email address",
		Body:     fmt.Sprintf("Hello %s,<br/><br/>Follow <a href=\"%s\">this link</a> to verify your email address. The link expires in 24 hours.", user.Name, link),
		Html:     true,
	})
	if err != nil {
		log.Printf("Could not send verification mail to %s: %s\n", user.Email, err.Error())
	}
}

func guestAuthRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	guest := apiv1.Group("/auth")
	guest.
		POST("/register", func(ctx *gin.Context) {
			var body types.RegisterRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			user := models.User{
				Name:     body.Name,
				Email:    body.Email,
				Password: string(hash),
				Role:     types.ROLE_USER,
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.Model(&models.User{}).Where("email = ?", body.Email).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return fmt.Errorf("email %s is already registered", body.Email)
				}
				return tx.Create(&user).Error
			}); err != nil {
				log.Printf("[AuthRegister] error: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			token := uuid.New().String()
			rd := lib.GetRedisClient()
			if _, err := rd.SetEx(context.Background(), fmt.Sprintf("verify:%s", token), user.ID, 24*time.Hour).Result(); err != nil {
				log.Printf("Error caching verification token: %s\n", err.Error())
			}
			go sendVerificationMail(&user, token)

			ctx.JSON(http.StatusOK, gin.H{"id": user.ID})
		}).
		GET("/verify-email", func(ctx *gin.Context) {
			token := ctx.Query("token")
			if token == "" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
				return
			}
			rd := lib.GetRedisClient()
			key := fmt.Sprintf("verify:%s", token)
			val, err := rd.Get(context.Background(), key).Result()
			if err == redis.Nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
				return
			} else if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			userId, err := strconv.Atoi(val)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
				return
			}
			now := time.Now()
			db := db.GetDb()
			if err := db.
				Model(&models.User{}).
				Where("id = ?", uint(userId)).
				Updates(map[string]any{
					"email_verified": true,
					"verified_at":    now,
				}).
				Error; err != nil {
				log.Printf("Error verifying user %d: %s\n", userId, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			rd.Del(context.Background(), key)
			ctx.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
		}).
		POST("/login", func(ctx *gin.Context) {
			var body types.LoginRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var user models.User
			if err := db.
				Where("email = ?", body.Email).
				First(&user).
				Error; err != nil {
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)); err != nil {
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			if !user.EmailVerified {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "email address is not verified"})
				return
			}
			token, err := generateJWT(&user)
			if err != nil {
				log.Printf("[AuthLogin] error: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			refresh := uuid.New().String()
			rd := lib.GetRedisClient()
			if _, err := rd.SetEx(context.Background(), fmt.Sprintf("refresh:%s", refresh), user.ID, refreshTokenTTL).Result(); err != nil {
				log.Printf("Error caching refresh token: %s\n", err.Error())
			}
			ctx.JSON(http.StatusOK, gin.H{"token": token, "refresh_token": refresh})
		}).
		POST("/refresh", func(ctx *gin.Context) {
			var body types.RefreshTokenRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			rd := lib.GetRedisClient()
			key := fmt.Sprintf("refresh:%s", body.RefreshToken)
			val, err := rd.Get(context.Background(), key).Result()
			if err != nil {
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
				return
			}
			userId, err := strconv.Atoi(val)
			if err != nil {
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
				return
			}
			db := db.GetDb()
			var user models.User
			if err := db.First(&user, uint(userId)).Error; err != nil {
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
				return
			}
			token, err := generateJWT(&user)
			if err != nil {
				log.Printf("[AuthRefresh] error: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			// Rotate: the presented grant is spent either way.
			rotated := uuid.New().String()
			if _, err := rd.SetEx(context.Background(), fmt.Sprintf("refresh:%s", rotated), user.ID, refreshTokenTTL).Result(); err != nil {
				log.Printf("Error caching refresh token: %s\n", err.Error())
			}
			rd.Del(context.Background(), key)
			ctx.JSON(http.StatusOK, gin.H{"token": token, "refresh_token": rotated})
		}).
		POST("/forgot-password", func(ctx *gin.Context) {
			var body types.ForgotPasswordRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var user models.User
			if err := db.
				Where("email = ?", body.Email).
				First(&user).
				Error; err != nil {
				// Same response whether or not the account exists.
				ctx.JSON(http.StatusOK, gin.H{"message": "If the account exists, a reset link has been sent"})
				return
			}
			token := uuid.New().String()
			rd := lib.GetRedisClient()
			if _, err := rd.SetEx(context.Background(), fmt.Sprintf("reset:%s", token), user.ID, 1*time.Hour).Result(); err != nil {
				log.Printf("Error caching reset token: %s\n", err.Error())
			}
			appHost := os.Getenv("APP_HOST")
			go func() {
				err := lib.SendMail(&lib.SendMailInput{
					From:     os.Getenv("MAIL_FROM"),
					FromName: "Car Rental",
					To:       []string{user.Email},
					Subject:  "Reset your password",
					Body:     fmt.Sprintf("Follow <a href=\"%s/reset-password?token=%s\">this link</a> to reset your password. The link expires in 1 hour.", appHost, token),
					Html:     true,
				})
				if err != nil {
					log.Printf("Could not send reset mail to %s: %s\n", user.Email, err.Error())
				}
			}()
			ctx.JSON(http.StatusOK, gin.H{"message": "If the account exists, a reset link has been sent"})
		}).
		POST("/reset-password", func(ctx *gin.Context) {
			var body types.ResetPasswordRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			rd := lib.GetRedisClient()
			key := fmt.Sprintf("reset:%s", body.Token)
			val, err := rd.Get(context.Background(), key).Result()
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
				return
			}
			userId, err := strconv.Atoi(val)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
				return
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			db := db.GetDb()
			if err := db.
				Model(&models.User{}).
				Where("id = ?", uint(userId)).
				Update("password", string(hash)).
				Error; err != nil {
				log.Printf("Error resetting password for user %d: %s\n", userId, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			rd.Del(context.Background(), key)
			ctx.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
		})
	return guest
}
