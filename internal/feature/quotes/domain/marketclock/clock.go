// Package marketclock computes the exchange session state from wall-clock time.
package marketclock

import (
	"time"

	"stock_feed/internal/feature/quotes/domain/entity"
)

// 取引時間は米国東部時間の9:30〜16:00、月〜金曜日です。
const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0
)

// eastern is the fixed exchange timezone. LoadLocation needs tzdata at
// runtime; fall back to a fixed EST offset when it is missing.
var eastern = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}()

// Status returns the market session for the given instant. It is pure:
// no I/O, deterministic for a fixed now.
func Status(now time.Time) entity.MarketSession {
	et := now.In(eastern)

	todayOpen := time.Date(et.Year(), et.Month(), et.Day(), openHour, openMinute, 0, 0, eastern)
	todayClose := time.Date(et.Year(), et.Month(), et.Day(), closeHour, closeMinute, 0, 0, eastern)

	weekday := et.Weekday()
	isOpen := weekday >= time.Monday && weekday <= time.Friday &&
		!et.Before(todayOpen) && !et.After(todayClose)

	if isOpen {
		return entity.MarketSession{IsOpen: true}
	}

	// 次の開場時刻をケース分けで計算します。
	var next time.Time
	switch {
	case weekday == time.Saturday || weekday == time.Sunday:
		// 週末 → 次の月曜9:30
		next = todayOpen.AddDate(0, 0, daysUntilMonday(weekday))
	case et.Before(todayOpen):
		// 今日の開場前 → 今日9:30
		next = todayOpen
	default:
		// 今日の閉場後 → 翌日9:30（週末に当たる場合は月曜へ）
		next = todayOpen.AddDate(0, 0, 1)
		if wd := next.Weekday(); wd == time.Saturday || wd == time.Sunday {
			next = next.AddDate(0, 0, daysUntilMonday(wd))
		}
	}

	return entity.MarketSession{IsOpen: false, NextOpen: &next}
}

// daysUntilMonday returns how many days forward the next Monday is.
func daysUntilMonday(wd time.Weekday) int {
	return (int(time.Monday) - int(wd) + 7) % 7
}
