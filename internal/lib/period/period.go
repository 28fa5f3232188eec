// Package period содержит вычисления границ календарных периодов в UTC,
// используемые при ленивом сбросе квот и расписании фоновых задач.
package period

import "time"

// DayStart возвращает полночь UTC того дня, которому принадлежит t.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameMonth сообщает, что a и b относятся к одному календарному месяцу UTC.
func SameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// NextDaily возвращает ближайший момент после now, когда часы UTC показывают hour:00.
func NextDaily(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextWeekly возвращает ближайший момент после now, приходящийся на weekday в hour:00 UTC.
func NextWeekly(now time.Time, weekday time.Weekday, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	days := (int(weekday) - int(next.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
