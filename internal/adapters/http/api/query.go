package api

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	maxLimit       = 500
	maxQueryLength = 100
)

// queryReader parses typed query parameters and keeps the first failure so
// handlers can read every field before checking once.
type queryReader struct {
	values url.Values
	err    error
}

func newQueryReader(values url.Values) *queryReader {
	return &queryReader{values: values}
}

func (q *queryReader) string(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

func (q *queryReader) fail(key, raw string, err error) {
	if q.err == nil {
		q.err = fmt.Errorf("%s=%q: %w", key, raw, err)
	}
}

func (q *queryReader) float(key string) (float64, bool) {
	raw := q.string(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		q.fail(key, raw, errors.New("not a finite number"))
		return 0, false
	}
	return v, true
}

func (q *queryReader) floatPtr(key string) *float64 {
	v, ok := q.float(key)
	if !ok {
		return nil
	}
	return &v
}

func (q *queryReader) int(key string) (int, bool) {
	raw := q.string(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(key, raw, errors.New("not an integer"))
		return 0, false
	}
	return v, true
}

func (q *queryReader) intPtr(key string) *int {
	v, ok := q.int(key)
	if !ok {
		return nil
	}
	return &v
}

func (q *queryReader) bool(key string) bool {
	raw := q.string(key)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(key, raw, errors.New("not a boolean"))
		return false
	}
	return v
}

// limit reads a row limit in [1, maxLimit]; zero means unset.
func (q *queryReader) limit(key string) int {
	v, ok := q.int(key)
	if !ok {
		return 0
	}
	if v < 1 || v > maxLimit {
		q.fail(key, strconv.Itoa(v), fmt.Errorf("must be between 1 and %d", maxLimit))
		return 0
	}
	return v
}

// parseParam applies a text parser to an optional parameter.
func parseParam[T any](q *queryReader, key string, parse func(string) (T, error)) (T, bool) {
	var zero T
	raw := q.string(key)
	if raw == "" {
		return zero, false
	}
	v, err := parse(raw)
	if err != nil {
		q.fail(key, raw, err)
		return zero, false
	}
	return v, true
}
