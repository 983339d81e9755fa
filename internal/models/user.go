package models

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// User is a client profile at users/{phone}. The messaging core only reads
// it; registration writes it.
type User struct {
	Phone        string `json:"phone"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Role         string `json:"role,omitempty"`
	CreatedAt    int64  `json:"createdAt,omitempty"`
}

// TherapistProfile lives at therapists/{id}. Created lazily on first
// therapist-role access, keyed for dedup by phone.
type TherapistProfile struct {
	ID        TherapistID `json:"id,omitempty"`
	Name      string      `json:"name"`
	Phone     string      `json:"phone"`
	Status    string      `json:"status"`
	Specialty string      `json:"specialty"`
	Bio       string      `json:"bio"`
	Rating    float64     `json:"rating"`
	CreatedAt int64       `json:"createdAt,omitempty"`
}

func (p *TherapistProfile) Online() bool {
	return p.Status == StatusOnline
}
