package docstore

import "slices"

// Collect returns a fold that keeps the decoded documents of a collection
// and emits the full set after every batch. With cmp nil the set keeps
// first-seen order; otherwise it is sorted by cmp on every emission.
// Documents that fail to decode are reported to skipped and left out.
func Collect[T any](decode func(Document) (T, error), cmp func(a, b T) int, skipped func(Document, error)) Fold[[]T] {
	items := make(map[string]T)
	var order []string

	return func(b Batch) ([]T, bool, error) {
		put := func(doc Document) {
			v, err := decode(doc)
			if err != nil {
				if skipped != nil {
					skipped(doc, err)
				}
				return
			}
			if _, ok := items[doc.ID]; !ok {
				order = append(order, doc.ID)
			}
			items[doc.ID] = v
		}
		for _, doc := range b.Added {
			put(doc)
		}
		for _, doc := range b.Modified {
			put(doc)
		}
		for _, doc := range b.Removed {
			if _, ok := items[doc.ID]; ok {
				delete(items, doc.ID)
				order = slices.DeleteFunc(order, func(id string) bool { return id == doc.ID })
			}
		}

		out := make([]T, 0, len(order))
		for _, id := range order {
			out = append(out, items[id])
		}
		if cmp != nil {
			slices.SortStableFunc(out, cmp)
		}
		return out, true, nil
	}
}
