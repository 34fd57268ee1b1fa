package gates

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Calendar lists non-working dates on which offers are not accepted.
type Calendar struct {
	dates     map[string]struct{} // "2006-01-02"
	recurring map[string]struct{} // "01-02"
}

type calendarFile struct {
	Holidays  []string `yaml:"holidays"`
	Recurring []string `yaml:"recurring"`
}

// LoadCalendar reads a holiday calendar from a YAML file. A missing path
// yields an empty calendar.
func LoadCalendar(path string) (*Calendar, error) {
	cal := &Calendar{
		dates:     make(map[string]struct{}),
		recurring: make(map[string]struct{}),
	}

	if path == "" {
		return cal, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cal, nil
		}
		return nil, fmt.Errorf("read holidays file %q: %w", path, err)
	}

	var file calendarFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse holidays file %q: %w", path, err)
	}

	for _, d := range file.Holidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("holiday date %q: %w", d, err)
		}
		cal.dates[d] = struct{}{}
	}
	for _, d := range file.Recurring {
		if _, err := time.Parse("01-02", d); err != nil {
			return nil, fmt.Errorf("recurring holiday %q: %w", d, err)
		}
		cal.recurring[d] = struct{}{}
	}

	return cal, nil
}

// IsHoliday reports whether the given day is listed in the calendar.
func (c *Calendar) IsHoliday(day time.Time) bool {
	if c == nil {
		return false
	}

	if _, ok := c.dates[day.Format("2006-01-02")]; ok {
		return true
	}
	_, ok := c.recurring[day.Format("01-02")]
	return ok
}
