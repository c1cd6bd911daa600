package tasks

import "time"

// Calendar groups tasks by year, month and day of their date. Tasks whose
// date is free text (e.g. "next Friday") land in Undated.
type Calendar struct {
	Years   map[string]map[string]map[string][]Task `json:"years"`
	Undated []Task                                  `json:"undated"`
}

func Nest(list []Task) Calendar {
	cal := Calendar{
		Years:   map[string]map[string]map[string][]Task{},
		Undated: []Task{},
	}

	for _, t := range list {
		d, err := time.Parse(time.DateOnly, t.Date)
		if err != nil {
			cal.Undated = append(cal.Undated, t)
			continue
		}

		year, month, day := d.Format("2006"), d.Format("01"), d.Format("02")
		if cal.Years[year] == nil {
			cal.Years[year] = map[string]map[string][]Task{}
		}
		if cal.Years[year][month] == nil {
			cal.Years[year][month] = map[string][]Task{}
		}
		cal.Years[year][month][day] = append(cal.Years[year][month][day], t)
	}

	return cal
}
