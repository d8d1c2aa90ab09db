package entity

type Product struct {
	ID   string
	Name string
}
