package domain

// TokenCategory distinguishes access tokens from refresh tokens.
type TokenCategory string

const (
	TokenCategoryAccess  TokenCategory = "access"
	TokenCategoryRefresh TokenCategory = "refresh"
)

// RefreshRecord is the persisted server-side state for one issued refresh token.
// A refresh token absent from the store is unusable even while its signature
// and expiry are still valid; deleting the record is the revocation mechanism.
type RefreshRecord struct {
	Email      string `json:"email"`
	Token      string `json:"-"`
	Role       Role   `json:"role"`
	Expiration string `json:"expiration"`
}
