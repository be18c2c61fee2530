package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
// Лента событий append-only и служит аудиторским следом заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
