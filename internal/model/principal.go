package model

// Roles carried in the "role" claim of an access token.  Accounts live
// in an external identity service; this service only checks the claim.
const (
    RolePassenger = "PASSENGER"
    RoleAdmin     = "ADMIN"
)
