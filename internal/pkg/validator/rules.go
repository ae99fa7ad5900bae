package validator

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Rule inspects one answer text. The returned error's message is shown to the user.
type Rule func(value string) error

const (
	MaxAnswerLength   = 5000
	MinGeneralLength  = 3
	MinTimelineLength = 5
	MaxBudget         = 10_000_000
	MinTimelineDays   = 1
	MaxTimelineDays   = 730
)

// NotBlank rejects empty and whitespace-only answers.
func NotBlank(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("Answer cannot be empty")
	}
	return nil
}

// MaxLength caps every answer.
func MaxLength(value string) error {
	if utf8.RuneCountInString(value) > MaxAnswerLength {
		return errors.New("Answer is too long (maximum 5000 characters)")
	}
	return nil
}

// GeneralText requires a few characters of substance.
func GeneralText(value string) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < MinGeneralLength {
		return errors.New("Answer is too short (minimum 3 characters)")
	}
	return nil
}

var budgetNoise = strings.NewReplacer("$", "", ",", "", " ", "", "\t", "", "\n", "")

// PositiveBudget accepts amounts like "$50,000" or "12000.50".
func PositiveBudget(value string) error {
	amount, err := strconv.ParseFloat(budgetNoise.Replace(value), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return errors.New("Budget must be a valid number")
	}
	if amount <= 0 {
		return errors.New("Budget must be positive")
	}
	if amount > MaxBudget {
		return errors.New("Budget must not exceed 10,000,000")
	}
	return nil
}

// ParseableTimeline accepts a duration such as "3 months" or "6-8 weeks",
// or a target date such as "by March 2026".
func ParseableTimeline(value string) error {
	text := strings.TrimSpace(value)
	if utf8.RuneCountInString(text) < MinTimelineLength {
		return errors.New("Timeline is too short (minimum 5 characters)")
	}

	if days, ok := parseDurationDays(text); ok {
		if days < MinTimelineDays || days > MaxTimelineDays {
			return errors.New("Timeline must be between 1 day and 2 years")
		}
		return nil
	}

	if _, ok := parseTargetDate(text); ok {
		return nil
	}

	return errors.New("Timeline must be a duration (e.g. 3 months) or a date (e.g. March 2026)")
}

var numberWords = map[string]float64{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"eighteen": 18, "twenty": 20, "thirty": 30, "half": 0.5,
}

var unitDays = map[string]float64{
	"day": 1, "week": 7, "month": 30, "quarter": 91, "year": 365,
}

const numberPattern = `\d+(?:\.\d+)?|a|an|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|eighteen|twenty|thirty|half`

var durationPattern = regexp.MustCompile(`(?i)\b(` + numberPattern + `)(?:\s*(?:-|–|to)\s*(` + numberPattern + `))?\s*(day|week|month|quarter|year)s?\b`)

// parseDurationDays returns the length in days, taking the upper bound of a range.
func parseDurationDays(text string) (float64, bool) {
	m := durationPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	amount, ok := parseAmount(m[1])
	if !ok {
		return 0, false
	}
	if m[2] != "" {
		upper, ok := parseAmount(m[2])
		if !ok {
			return 0, false
		}
		amount = max(amount, upper)
	}
	return amount * unitDays[strings.ToLower(m[3])], true
}

func parseAmount(raw string) (float64, bool) {
	if n, ok := numberWords[strings.ToLower(raw)]; ok {
		return n, true
	}
	n, err := strconv.ParseFloat(raw, 64)
	return n, err == nil
}

var datePrefixes = []string{"by the end of ", "end of ", "by ", "until ", "before ", "due "}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01",
	"January 2006",
	"Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
	"02.01.2006",
}

func parseTargetDate(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	lower := strings.ToLower(s)
	for _, prefix := range datePrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	s = strings.TrimRight(s, ".!")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
