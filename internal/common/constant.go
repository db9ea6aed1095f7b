package common

// UserIDContextKey is the gin context key under which the auth middleware
// stores the acting user id.
const UserIDContextKey = "userID"

// ShareTokenBytes is the amount of random bytes behind a share token.
const ShareTokenBytes = 32
