package ginsrv

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/seb7887/gofw/sietch"
)

// ParseFilter reads a list query from URL parameters:
//
//	where=price:>:10   (repeatable, ANDed; field:operator:value)
//	order=name,-price  (at most two keys, "-" for descending)
//	skip=1&take=2
//
// Operators are the sietch ComparisonOperators, case-insensitive.
func ParseFilter(values url.Values) (*sietch.Filter, error) {
	b := sietch.NewFilter()

	for _, w := range values["where"] {
		field, rest, ok := strings.Cut(w, ":")
		if !ok || field == "" {
			return nil, fmt.Errorf("%w: where %q is not field:operator:value", sietch.ErrInvalidQuery, w)
		}
		op, value, _ := strings.Cut(rest, ":")
		operator := sietch.ComparisonOperator(strings.ToUpper(strings.TrimSpace(op)))
		var v any = value
		if operator == sietch.OpIsNull || operator == sietch.OpIsNotNull {
			v = nil
		}
		b.Where(field, operator, v)
	}

	if order := values.Get("order"); order != "" {
		for _, key := range strings.Split(order, ",") {
			key = strings.TrimSpace(key)
			dir := sietch.SortAsc
			if name, ok := strings.CutPrefix(key, "-"); ok {
				key, dir = name, sietch.SortDesc
			}
			b.OrderBy(key, dir)
		}
	}

	for _, p := range []struct {
		name string
		set  func(int) *sietch.FilterBuilder
	}{{"skip", b.Offset}, {"take", b.Limit}} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer, got %q", sietch.ErrInvalidQuery, p.name, raw)
		}
		p.set(n)
	}

	return b.Build(), nil
}
