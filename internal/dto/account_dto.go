package dto

import (
	"time"

	"github.com/noah-isme/essay-grader-api/internal/models"
)

// RegisterRequest creates a student account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest authenticates with a username or an email address.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// TokenResponse carries a signed access token.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

// PasswordResetRequest asks for a reset link to be mailed.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest sets a new password from a mailed link.
type PasswordResetConfirmRequest struct {
	UIDB64       string `json:"uidb64" validate:"required"`
	Token        string `json:"token" validate:"required"`
	NewPassword1 string `json:"new_password1" validate:"required,min=8,max=128"`
	NewPassword2 string `json:"new_password2" validate:"required,eqfield=NewPassword1"`
}

// ProfileResponse exposes the role and coin balance of a user.
type ProfileResponse struct {
	Role         string `json:"role"`
	CoinsBalance int    `json:"coins_balance"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID       uint             `json:"id"`
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Profile  *ProfileResponse `json:"profile"`
}

// CoinTransactionResponse is one ledger entry.
type CoinTransactionResponse struct {
	ID          uint      `json:"id"`
	Type        string    `json:"type"`
	Amount      int       `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaginationMeta describes a page of results.
type PaginationMeta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// CoinAdjustRequest credits or debits a profile on behalf of an administrator.
type CoinAdjustRequest struct {
	Type        string `json:"type" validate:"required,oneof=credit debit"`
	Amount      int    `json:"amount" validate:"required,gt=0,lte=1000000"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

// CoinAdjustResponse returns the new balance with the recorded entry.
type CoinAdjustResponse struct {
	Profile     ProfileResponse         `json:"profile"`
	Transaction CoinTransactionResponse `json:"transaction"`
}

// NewProfileResponse converts a profile model.
func NewProfileResponse(model models.Profile) ProfileResponse {
	return ProfileResponse{
		Role:         model.Role,
		CoinsBalance: model.CoinsBalance,
	}
}

// NewUserResponse converts a user model, including the profile when loaded.
func NewUserResponse(model models.User) UserResponse {
	response := UserResponse{
		ID:       model.ID,
		Username: model.Username,
		Email:    model.Email,
	}
	if model.Profile != nil {
		profile := NewProfileResponse(*model.Profile)
		response.Profile = &profile
	}
	return response
}

// NewCoinTransactionResponse converts a ledger entry.
func NewCoinTransactionResponse(model models.CoinTransaction) CoinTransactionResponse {
	return CoinTransactionResponse{
		ID:          model.ID,
		Type:        model.Type,
		Amount:      model.Amount,
		Description: model.Description,
		CreatedAt:   model.CreatedAt,
	}
}

// NewCoinTransactionResponseSlice converts a list of ledger entries.
func NewCoinTransactionResponseSlice(items []models.CoinTransaction) []CoinTransactionResponse {
	responses := make([]CoinTransactionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewCoinTransactionResponse(item))
	}
	return responses
}
