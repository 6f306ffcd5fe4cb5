package forecast

import "time"

// Filter selects the records shown on the dashboard.
type Filter struct {
	City      string    `json:"city" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
}

// DefaultFilter covers the seven days leading up to now for city.
func DefaultFilter(city string, now time.Time) Filter {
	return Filter{
		City:      city,
		StartDate: now.AddDate(0, 0, -7),
		EndDate:   now,
	}
}
