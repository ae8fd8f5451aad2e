package model

// Principal identifies who is making a request. It is resolved once by the
// authentication middleware; handlers switch on the concrete type instead of
// re-checking roles.
type Principal interface {
	principal()
}

// Guest is an unauthenticated visitor identified by a session key
type Guest struct {
	SessionKey string
}

type Buyer struct {
	UserID uint
	Email  string
}

type SellerPrincipal struct {
	UserID   uint
	Email    string
	SellerID uint // zero until the seller profile exists
	Approved bool
}

type Admin struct {
	UserID uint
	Email  string
}

func (Guest) principal()           {}
func (Buyer) principal()           {}
func (SellerPrincipal) principal() {}
func (Admin) principal()           {}

// AccountID returns the user id behind an authenticated principal.
// Every authenticated role may buy; guests have no account.
func AccountID(p Principal) (uint, bool) {
	switch v := p.(type) {
	case Buyer:
		return v.UserID, true
	case SellerPrincipal:
		return v.UserID, true
	case Admin:
		return v.UserID, true
	}
	return 0, false
}
