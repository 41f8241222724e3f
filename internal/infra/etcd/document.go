package etcd

import (
	"cmp"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"swipework/internal/domain"
)

// document is a decoded job record. data holds the raw JSON fields so that
// queries and update ops can address dotted paths.
type document struct {
	id      string
	modRev  int64
	data    map[string]any
	listing *domain.JobListing
}

func decodeDocument(key string, value []byte, modRev int64) (*document, error) {
	var data map[string]any
	if err := json.Unmarshal(value, &data); err != nil {
		return nil, err
	}
	var listing domain.JobListing
	if err := json.Unmarshal(value, &listing); err != nil {
		return nil, err
	}
	if listing.ID == "" {
		listing.ID = path.Base(key)
	}
	return &document{id: listing.ID, modRev: modRev, data: data, listing: &listing}, nil
}

// normalize converts v to the shape it has after a JSON round trip, so that
// Go values compare equal to decoded document fields.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// lookup resolves a dotted field path.
func lookup(data map[string]any, field string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// compareValues orders numbers, timestamps, strings and booleans. The
// second result is false when the values are not of one comparable kind.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv), true
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		at, aerr := time.Parse(time.RFC3339Nano, av)
		bt, berr := time.Parse(time.RFC3339Nano, bv)
		if aerr == nil && berr == nil {
			return at.Compare(bt), true
		}
		return strings.Compare(av, bv), true
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func equalValues(a, b any) bool {
	c, ok := compareValues(a, b)
	return ok && c == 0
}

func containsValue(list []any, v any) bool {
	return slices.ContainsFunc(list, func(e any) bool { return equalValues(e, v) })
}

func matchFilter(data map[string]any, f domain.Filter) bool {
	v, ok := lookup(data, f.Field)
	if !ok {
		return false
	}
	want := normalize(f.Value)
	switch f.Op {
	case domain.OpEqual:
		return equalValues(v, want)
	case domain.OpIn:
		options, _ := want.([]any)
		return containsValue(options, v)
	case domain.OpArrayContains:
		arr, _ := v.([]any)
		return containsValue(arr, want)
	case domain.OpArrayContainsAny:
		arr, _ := v.([]any)
		options, _ := want.([]any)
		return slices.ContainsFunc(options, func(o any) bool { return containsValue(arr, o) })
	case domain.OpGreaterOrEqual:
		c, ok := compareValues(v, want)
		return ok && c >= 0
	case domain.OpLessOrEqual:
		c, ok := compareValues(v, want)
		return ok && c <= 0
	}
	return false
}

func matchAll(d *document, filters []domain.Filter) bool {
	for _, f := range filters {
		if !matchFilter(d.data, f) {
			return false
		}
	}
	return true
}

// compareOrder orders by field value (descending if desc), then by id.
func compareOrder(av any, aid string, bv any, bid string, desc bool) int {
	c, _ := compareValues(av, bv)
	if desc {
		c = -c
	}
	if c != 0 {
		return c
	}
	return strings.Compare(aid, bid)
}

// orderDocuments sorts docs by orderBy. Documents without the field are
// left out, as an ordered query cannot place them.
func orderDocuments(docs []*document, orderBy string, desc bool) []*document {
	out := make([]*document, 0, len(docs))
	for _, d := range docs {
		if orderBy == "" {
			out = append(out, d)
			continue
		}
		if _, ok := lookup(d.data, orderBy); ok {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b *document) int {
		if orderBy == "" {
			return strings.Compare(a.id, b.id)
		}
		av, _ := lookup(a.data, orderBy)
		bv, _ := lookup(b.data, orderBy)
		return compareOrder(av, a.id, bv, b.id, desc)
	})
	return out
}

// selectPage runs q over docs and returns the page with its cursor.
func selectPage(docs []*document, q domain.Query) domain.Page {
	matched := make([]*document, 0, len(docs))
	for _, d := range docs {
		if matchAll(d, q.Filters) {
			matched = append(matched, d)
		}
	}
	ordered := orderDocuments(matched, q.OrderBy, q.Descending)

	if c := q.StartAfter; c != nil {
		cv := normalize(c.LastValue)
		i := slices.IndexFunc(ordered, func(d *document) bool {
			v, _ := lookup(d.data, q.OrderBy)
			return compareOrder(v, d.id, cv, c.LastID, q.Descending) > 0
		})
		if i < 0 {
			ordered = nil
		} else {
			ordered = ordered[i:]
		}
	}
	if q.Limit > 0 && len(ordered) > q.Limit {
		ordered = ordered[:q.Limit]
	}

	page := domain.Page{Listings: make([]*domain.JobListing, 0, len(ordered))}
	for _, d := range ordered {
		page.Listings = append(page.Listings, d.listing)
	}
	if n := len(ordered); n > 0 {
		last := ordered[n-1]
		v, _ := lookup(last.data, q.OrderBy)
		page.Cursor = &domain.Cursor{LastID: last.id, LastValue: v}
	}
	return page
}

// applyOps applies update ops to data in order.
func applyOps(data map[string]any, ops []domain.UpdateOp) error {
	for _, op := range ops {
		parent, leaf, err := parentOf(data, op.Field)
		if err != nil {
			return err
		}
		switch op.Kind {
		case domain.UpdateSet:
			parent[leaf] = normalize(op.Value)
		case domain.UpdateArrayUnion, domain.UpdateArrayRemove:
			arr, ok := parent[leaf].([]any)
			if !ok && parent[leaf] != nil {
				return fmt.Errorf("field %s is not an array", op.Field)
			}
			v := normalize(op.Value)
			if op.Kind == domain.UpdateArrayUnion {
				if !containsValue(arr, v) {
					arr = append(arr, v)
				}
			} else {
				arr = slices.DeleteFunc(arr, func(e any) bool { return equalValues(e, v) })
			}
			parent[leaf] = arr
		case domain.UpdateIncrement:
			delta, ok := normalize(op.Value).(float64)
			if !ok {
				return fmt.Errorf("increment of %s by non-number %v", op.Field, op.Value)
			}
			cur, ok := parent[leaf].(float64)
			if !ok && parent[leaf] != nil {
				return fmt.Errorf("field %s is not a number", op.Field)
			}
			parent[leaf] = cur + delta
		default:
			return fmt.Errorf("unknown update op %q", op.Kind)
		}
	}
	return nil
}

// parentOf walks to the map holding the last path element, creating
// intermediate maps.
func parentOf(data map[string]any, field string) (map[string]any, string, error) {
	parts := strings.Split(field, ".")
	cur := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			m := map[string]any{}
			cur[part] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("field %s: %s is not an object", field, part)
		}
		cur = m
	}
	return cur, parts[len(parts)-1], nil
}
