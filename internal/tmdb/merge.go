package tmdb

// MergePage appends the items of incoming whose id is not yet in acc,
// preserving order. acc is not modified; a new Page is returned. A nil
// incoming page or one without results is treated as empty. Merging the
// same page twice yields the same sequence as merging it once.
func MergePage(acc, incoming *Page) *Page {
	out := &Page{}
	if acc != nil {
		*out = *acc
	}
	results := make([]Media, len(out.Results), len(out.Results)+pageLen(incoming))
	copy(results, out.Results)
	out.Results = results
	if incoming == nil {
		return out
	}

	seen := make(map[int64]struct{}, len(out.Results)+len(incoming.Results))
	for _, m := range out.Results {
		seen[m.ID] = struct{}{}
	}
	for _, m := range incoming.Results {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out.Results = append(out.Results, m)
	}

	if incoming.Page > out.Page {
		out.Page = incoming.Page
	}
	if incoming.TotalPages != 0 {
		out.TotalPages = incoming.TotalPages
	}
	if incoming.TotalResults != 0 {
		out.TotalResults = incoming.TotalResults
	}
	return out
}

func pageLen(p *Page) int {
	if p == nil {
		return 0
	}
	return len(p.Results)
}
