package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/models"
	"github.com/sellerbridge/sellerbridge/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var user models.UserAuth
	if err := r.db.Where("username = ?", loginReq.Username).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !user.IsActive {
		respondError(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	if !utils.CheckPasswordHash(loginReq.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	user.LastLogin = &now
	r.db.Save(&user)

	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
		"user":         user,
	})
}

// register handles user registration
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if regReq.Username == "" || regReq.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	var count int64
	r.db.Model(&models.UserAuth{}).Where("username = ?", regReq.Username).Count(&count)
	if count > 0 {
		respondError(w, http.StatusConflict, "Username already taken")
		return
	}

	hashed, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.UserAuth{
		Username: regReq.Username,
		Password: hashed,
		Email:    regReq.Email,
		Name:     regReq.Name,
		Role:     "operator",
		IsActive: true,
	}
	if err := r.db.Create(&user).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}
