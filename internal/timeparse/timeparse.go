// Package timeparse turns user supplied trigger expressions into UTC instants.
package timeparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/cockroachdb/errors"
)

// DefaultDelay is applied by Resolve when nothing in the expression can be parsed.
const DefaultDelay = 24 * time.Hour

var ErrUnparseable = errors.New("unparseable time expression")

type Source string

const (
	SourceAbsolute Source = "absolute"
	SourceRelative Source = "relative"
	SourceDefault  Source = "default"
)

// Layouts tried before fuzzy parsing. Inputs without an offset are UTC.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var (
	firstInt = regexp.MustCompile(`\d+`)
	hourWord = regexp.MustCompile(`\bhours?\b|\bhrs?\b`)
	minWord  = regexp.MustCompile(`\bminutes?\b|\bmins?\b`)
)

// Parse interprets expr relative to now. Absolute timestamps win, then phrases
// such as "in 2 hours" or "in 15 minutes". Anything else is ErrUnparseable.
func Parse(expr string, now time.Time) (time.Time, Source, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return time.Time{}, "", errors.Wrap(ErrUnparseable, "empty expression")
	}

	if t, ok := parseAbsolute(s); ok {
		return t.UTC(), SourceAbsolute, nil
	}
	if t, ok := parseRelative(s, now); ok {
		return t.UTC(), SourceRelative, nil
	}
	return time.Time{}, "", errors.Wrapf(ErrUnparseable, "%q", s)
}

// Resolve is Parse with the fallback policy applied: an unparseable expression
// schedules for now + DefaultDelay and reports SourceDefault.
func Resolve(expr string, now time.Time) (time.Time, Source) {
	t, src, err := Parse(expr, now)
	if err != nil {
		return now.UTC().Add(DefaultDelay), SourceDefault
	}
	return t, src
}

func parseAbsolute(s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	// dateparse reads bare digit runs as unix timestamps, and duration words
	// never belong to an absolute date.
	if !strings.ContainsAny(s, "-/:., ") || hasUnitWord(strings.ToLower(s)) {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func hasUnitWord(lower string) bool {
	return hourWord.MatchString(lower) || minWord.MatchString(lower)
}

func parseRelative(s string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(s)
	digits := firstInt.FindString(lower)
	if digits == "" {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return time.Time{}, false
	}

	var unit time.Duration
	switch {
	case hourWord.MatchString(lower):
		unit = time.Hour
	case minWord.MatchString(lower):
		unit = time.Minute
	default:
		return time.Time{}, false
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return time.Time{}, false
	}
	at := now.Add(time.Duration(n) * unit)
	if !at.After(now) {
		return time.Time{}, false
	}
	return at, true
}
