package domain

import "strings"

// Address хранит почтовый адрес покупателя (доставка или счёт).
type Address struct {
	Name       string
	Street     string
	City       string
	PostalCode string
	Country    string // Опционально; не участвует в валидации.
}

// Valid проверяет, что обязательные поля адреса заполнены.
// Страна необязательна: часть сайтов работает только внутри одной юрисдикции.
func (a Address) Valid() bool {
	return strings.TrimSpace(a.Name) != "" &&
		strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.PostalCode) != ""
}
