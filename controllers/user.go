package controllers

import (
	"PawArena/middleware"
	models "PawArena/models/postgres"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// @Summary Basic health check
// @Description Answers pong if the server is alive
// @Tags misc
// @Produce json
// @Success 200 {object} object{message=string}
// @Router /ping [get]
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// @Summary Logs a user in
// @Description Checks the credentials and returns a Bearer JWT token
// @Tags user
// @Accept x-www-form-urlencoded
// @Produce json
// @Param email formData string true "User email"
// @Param password formData string true "User password"
// @Success 200 {object} object{token=string,username=string}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Router /login [post]
func Login(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		email := c.PostForm("email")
		password := c.PostForm("password")

		// Minimum input sanitizing
		if strings.Trim(email, " ") == "" || strings.Trim(password, " ") == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parameters can't be empty"})
			return
		}

		var user models.User
		if err := db.Where("email = ?", email).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password!"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password!"})
			return
		}

		token, err := middleware.GenerateJWT(user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate token"})
			return
		}

		session.Set("Email", user.Email)
		if err := session.Save(); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No session!"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "username": user.ProfileUsername})
	}
}

// Logout from server, deletes the session associated with the Email key
// @Summary Logs a user out
// @Description Deletes the user's server-side session
// @Tags user
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} object{error=string}
// @Router /auth/logout [delete]
// @Security ApiKeyAuth
func Logout(c *gin.Context) {
	session := sessions.Default(c)
	user := session.Get("Email")
	// There is no session for the user, won't delete nothing
	if user == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session token"})
		return
	}

	session.Delete("Email")
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// @Summary Creates a new account
// @Description Registers a user and its game profile
// @Tags user
// @Accept x-www-form-urlencoded
// @Produce json
// @Param email formData string true "User email"
// @Param username formData string true "Public username"
// @Param password formData string true "User password"
// @Success 200 {object} object{message=string,username=string}
// @Failure 400 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /signup [post]
func SignUp(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.PostForm("email")
		username := c.PostForm("username")
		password := c.PostForm("password")

		if strings.Trim(email, " ") == "" || strings.Trim(username, " ") == "" ||
			strings.Trim(password, " ") == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parameters can't be empty"})
			return
		}

		var existing models.User
		if err := db.Where("email = ? OR profile_username = ?", email, username).
			First(&existing).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Email or username already taken"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error hashing password"})
			return
		}

		user := models.User{
			Email:           email,
			ProfileUsername: username,
			PasswordHash:    string(hash),
			GameProfile: models.GameProfile{
				Username: username,
			},
		}

		if err := db.Create(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating user"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "User created successfully", "username": username})
	}
}

// @Summary Public info of a user
// @Description Returns the public game profile of any user
// @Tags user
// @Produce json
// @Param username path string true "Username wanted"
// @Success 200 {object} object{username=string,icon=integer,level=integer,xp=integer}
// @Failure 404 {object} object{error=string}
// @Router /users/{username} [get]
func GetUserPublicInfo(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")

		var profile models.GameProfile
		if err := db.Where("username = ?", username).First(&profile).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"username": profile.Username,
			"icon":     profile.UserIcon,
			"level":    profile.Level,
			"xp":       profile.XP,
		})
	}
}

// @Summary Private info of the calling user
// @Description Returns the account and profile of the authenticated user
// @Tags user
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} object{email=string,username=string,xp=integer,level=integer}
// @Failure 401 {object} object{error=string}
// @Router /auth/me [get]
// @Security ApiKeyAuth
func GetUserPrivateInfo(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, err := middleware.JWT_decoder(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var user models.User
		if err := db.Preload("GameProfile").Where("email = ?", email).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found: invalid email"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"email":        user.Email,
			"username":     user.ProfileUsername,
			"full_name":    user.FullName,
			"member_since": user.MemberSince,
			"xp":           user.GameProfile.XP,
			"level":        user.GameProfile.Level,
			"icon":         user.GameProfile.UserIcon,
		})
	}
}
