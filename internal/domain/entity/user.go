package entity

type User struct {
	ID   string
	Name string
}
