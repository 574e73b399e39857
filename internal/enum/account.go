package enum

type AccountStatus string

const (
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

func (t AccountStatus) String() string {
	return string(t)
}

type EmailProvider string

const (
	EmailProviderIMAP EmailProvider = "imap"
)

func (t EmailProvider) String() string {
	return string(t)
}
