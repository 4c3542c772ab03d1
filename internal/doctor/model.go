package doctor

import (
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type Doctor struct {
	bun.BaseModel `bun:"table:doctors,alias:d"`

	ID                 int64  `bun:"id,pk,autoincrement" json:"id"`
	Name               string `bun:"name,notnull" json:"name" validate:"required,max=64"`
	Email              string `bun:"email,unique,notnull" json:"email" validate:"required,email,max=128"`
	RegistrationNumber string `bun:"registration_number,unique,notnull" json:"registrationNumber" validate:"required,max=15"`
	PasswordHash       string `bun:"password_hash,notnull" json:"-"`
}

// SetPassword stores the bcrypt hash of password.
func (d *Doctor) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	d.PasswordHash = string(hash)
	return nil
}

func (d *Doctor) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) == nil
}

// UpdateProfileRequest is the request body for PUT /api/doctors/me
type UpdateProfileRequest struct {
	Name               string `json:"name" validate:"required,max=64"`
	Email              string `json:"email" validate:"required,email,max=128"`
	RegistrationNumber string `json:"registrationNumber" validate:"required,max=15"`
}
