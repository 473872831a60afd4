package model

// Employee is the staff record exposed through the /v1/employees CRUD
// endpoints. It corresponds to a row in the `employees` table. The validate
// tags are enforced by the HTTP layer before the repository is called.
type Employee struct {
	ID       int64  `json:"id"`
	Name     string `json:"name" validate:"required,max=50"`
	Age      int    `json:"age" validate:"gte=0,lte=150"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Position string `json:"position" validate:"required,max=100"`
}

func (e Employee) GetID() int64 { return e.ID }
