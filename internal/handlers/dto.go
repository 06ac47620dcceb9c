package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// formDecoder is implemented by request DTOs that can also be posted as HTML forms
type formDecoder interface {
	decodeForm(form url.Values)
}

// decodeRequest fills dst from a JSON or form-encoded body
func decodeRequest(r *http.Request, dst formDecoder) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && err != http.ErrNotMultipart {
			return err
		}
		dst.decodeForm(r.PostForm)
		return nil
	default:
		return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

func (req *LoginRequest) decodeForm(form url.Values) {
	req.Username = form.Get("username")
	req.Password = form.Get("password")
}

// LostPasswordRequest names an account by username or e-mail
type LostPasswordRequest struct {
	UserLogin string `json:"user_login" validate:"required,max=254"`
}

func (req *LostPasswordRequest) decodeForm(form url.Values) {
	req.UserLogin = form.Get("user_login")
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	UserLogin string `json:"user_login" validate:"required,min=3,max=60,username"`
	UserEmail string `json:"user_email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
}

func (req *RegisterRequest) decodeForm(form url.Values) {
	req.UserLogin = form.Get("user_login")
	req.UserEmail = form.Get("user_email")
	req.Password = form.Get("password")
}

// ResetPasswordRequest carries the emailed key and the new password twice
type ResetPasswordRequest struct {
	Key   string `json:"key" validate:"required"`
	Pass1 string `json:"pass1" validate:"required"`
	Pass2 string `json:"pass2" validate:"required"`
}

func (req *ResetPasswordRequest) decodeForm(form url.Values) {
	req.Key = form.Get("key")
	req.Pass1 = form.Get("pass1")
	req.Pass2 = form.Get("pass2")
}

// NonceResponse is returned by the nonce endpoint
type NonceResponse struct {
	Action string `json:"action"`
	Nonce  string `json:"nonce"`
	Field  string `json:"field"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}
