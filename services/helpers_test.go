package services

import (
	"io"

	"tesla-finder/models"
	"tesla-finder/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, false) }

func i64(v int64) *int64 { return &v }

func year(v int) *int { return &v }

// car builds a listing; a negative value leaves that field unknown.
func car(title string, mileage, price int64, y int) *models.Listing {
	l := &models.Listing{
		Title: title,
		Price: models.Price{Currency: "AED", Display: "price on request"},
		URL:   "https://example.ae/" + title,
	}
	if mileage >= 0 {
		l.MileageKm = i64(mileage)
	}
	if price >= 0 {
		l.Price.Amount = i64(price)
	}
	if y >= 0 {
		l.Year = year(y)
	}
	return l
}
