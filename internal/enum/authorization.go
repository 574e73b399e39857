package enum

type AuthorizationStatus string

const (
	AuthorizationPending    AuthorizationStatus = "pending"
	AuthorizationAuthorized AuthorizationStatus = "authorized"
	AuthorizationDenied     AuthorizationStatus = "denied"
	AuthorizationExpired    AuthorizationStatus = "expired"
)

func (t AuthorizationStatus) String() string {
	return string(t)
}
