package exporter

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseLapSpec parses a user-entered lap selection: a single number ("5"),
// a comma- or space-separated list ("2,5,7"), a range ("2-5"), or a mix.
// Lap numbers are 1-based.
func ParseLapSpec(spec string) ([]int, error) {
	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return nil, errors.Errorf("empty lap specification %q", spec)
	}

	var laps []int
	for _, field := range fields {
		if start, end, ok := strings.Cut(field, "-"); ok {
			lo, err := strconv.Atoi(start)
			if err != nil {
				return nil, errors.Errorf("invalid lap range %q", field)
			}
			hi, err := strconv.Atoi(end)
			if err != nil || hi < lo {
				return nil, errors.Errorf("invalid lap range %q", field)
			}
			for n := lo; n <= hi; n++ {
				laps = append(laps, n)
			}
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Errorf("invalid lap number %q", field)
		}
		laps = append(laps, n)
	}
	return laps, nil
}
