package domain

// Principal models an authenticated actor. Principals are stored as records
// of the user entity.
type Principal struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Status       Status `json:"status"`
}

// Active reports whether the principal may use protected routes.
func (p *Principal) Active() bool {
	return p.Status == StatusOK || p.Status == StatusUnverified
}

// PrincipalFromRecord maps a user record to a Principal.
func PrincipalFromRecord(r Record) *Principal {
	return &Principal{
		ID:           r.ID(),
		Username:     r.String("username"),
		PasswordHash: r.String("password"),
		Status:       r.Status(),
	}
}

// RoleGrant links a principal to elevated privileges.
type RoleGrant struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Status Status `json:"status"`
}

// Granted reports whether the grant currently confers its role.
func (g *RoleGrant) Granted() bool {
	return g.Status == StatusOK
}

// RoleGrantFromRecord maps an admin record to a RoleGrant.
func RoleGrantFromRecord(r Record) *RoleGrant {
	return &RoleGrant{
		ID:     r.ID(),
		UserID: r.String("userId"),
		Role:   r.String("role"),
		Status: r.Status(),
	}
}

// Identity is the principal snapshot carried by a verified access token.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Status   Status `json:"status"`
}
