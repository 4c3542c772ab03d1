package patient

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// TableName is both the SQL table and the search index name.
const TableName = "patients"

// IndexedFields are the columns mirrored into the search index.
var IndexedFields = []string{"first_name", "last_name", "id_number", "email"}

type Patient struct {
	bun.BaseModel `bun:"table:patients,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	FirstName string    `bun:"first_name,notnull" json:"firstName"`
	LastName  string    `bun:"last_name,notnull" json:"lastName"`
	Age       int       `bun:"age,nullzero" json:"age,omitempty"`
	Sex       string    `bun:"sex,nullzero" json:"sex,omitempty"`
	IDNumber  string    `bun:"id_number,nullzero,unique" json:"idNumber,omitempty"`
	Email     string    `bun:"email,nullzero,unique" json:"email,omitempty"`
	LastSeen  time.Time `bun:"last_seen,nullzero,notnull,default:current_timestamp" json:"lastSeen"`
}

func (p *Patient) SearchTable() string { return TableName }

func (p *Patient) SearchID() int64 { return p.ID }

func (p *Patient) SearchFields() map[string]string {
	return map[string]string{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"id_number":  p.IDNumber,
		"email":      p.Email,
	}
}

// Avatar returns a gravatar identicon URL derived from the patient's email.
func (p *Patient) Avatar(size int) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(p.Email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon&s=%d", hex.EncodeToString(sum[:]), size)
}

const avatarSize = 128

func (p Patient) MarshalJSON() ([]byte, error) {
	type plain Patient
	return json.Marshal(struct {
		plain
		Avatar string `json:"avatar"`
	}{
		plain:  plain(p),
		Avatar: p.Avatar(avatarSize),
	})
}

// CreateRequest is the request body for POST /api/patients
type CreateRequest struct {
	FirstName string `json:"firstName" validate:"required,max=64"`
	LastName  string `json:"lastName" validate:"required,max=64"`
	Age       int    `json:"age" validate:"min=0,max=150"`
	Sex       string `json:"sex" validate:"omitempty,len=1"`
	IDNumber  string `json:"idNumber" validate:"omitempty,max=13"`
	Email     string `json:"email" validate:"omitempty,email,max=128"`
}

// UpdateRequest is the request body for PUT /api/patients/{id}
type UpdateRequest CreateRequest

func (req CreateRequest) apply(p *Patient) {
	p.FirstName = strings.TrimSpace(req.FirstName)
	p.LastName = strings.TrimSpace(req.LastName)
	p.Age = req.Age
	p.Sex = strings.ToUpper(strings.TrimSpace(req.Sex))
	p.IDNumber = strings.TrimSpace(req.IDNumber)
	p.Email = strings.ToLower(strings.TrimSpace(req.Email))
}
