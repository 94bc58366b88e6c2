package dto

import "github.com/noah-isme/sma-class-console/internal/models"

// CurrentUser is the console's view of the signed-in user.
type CurrentUser struct {
	UserID     string          `json:"user_id"`
	Email      string          `json:"email"`
	FullName   string          `json:"full_name"`
	Role       models.UserRole `json:"role"`
	RedirectTo string          `json:"redirect_to"`
	CanAuthor  bool            `json:"can_author"`
}

// NewCurrentUser builds the profile from validated token claims.
func NewCurrentUser(claims *models.JWTClaims) CurrentUser {
	return CurrentUser{
		UserID:     claims.UserID,
		Email:      claims.Email,
		FullName:   claims.FullName,
		Role:       claims.Role,
		RedirectTo: models.LandingPath(claims.Role),
		CanAuthor:  models.CanAuthorClasses(claims.Role),
	}
}
