package reservation

// BookerKind discriminates who made a reservation.
type BookerKind string

const (
	BookerRegistered BookerKind = "usuario"
	BookerGuest      BookerKind = "invitado"
)

// Booker is either a RegisteredBooker or a GuestBooker. Callers switch on the
// concrete type (or on Kind) instead of checking optional fields.
type Booker interface {
	Kind() BookerKind
	// ContactEmail returns the email providers should send receipts to, if known.
	ContactEmail() string
	// DisplayName is used as the payer name on provider intents.
	DisplayName() string
	sealed()
}

// RegisteredBooker is a caller with a verified identity.
type RegisteredBooker struct {
	UserID string
	Email  string
}

func (RegisteredBooker) Kind() BookerKind       { return BookerRegistered }
func (b RegisteredBooker) ContactEmail() string { return b.Email }
func (b RegisteredBooker) DisplayName() string  { return b.UserID }
func (RegisteredBooker) sealed()                {}

// GuestBooker carries inline contact data instead of an identity.
type GuestBooker struct {
	Name  string
	Email string
	Phone *string
}

func (GuestBooker) Kind() BookerKind       { return BookerGuest }
func (b GuestBooker) ContactEmail() string { return b.Email }
func (b GuestBooker) DisplayName() string  { return b.Name }
func (GuestBooker) sealed()                {}
