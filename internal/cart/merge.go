package cart

// Merge combines a local and a remote item set by id.
//
// Quantities add up. Name, price and image come from the remote record when
// both sides carry the id. Local ids keep their order, remote-only ids follow
// in remote order.
func Merge(local, remote []Item) []Item {
	remote = normalize(remote)
	remoteByID := make(map[string]Item, len(remote))
	for _, it := range remote {
		remoteByID[it.ID] = it
	}

	out := make([]Item, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local))
	for _, it := range local {
		seen[it.ID] = struct{}{}
		r, ok := remoteByID[it.ID]
		if !ok {
			out = append(out, it)
			continue
		}
		r.Quantity += it.Quantity
		out = append(out, r)
	}
	for _, it := range remote {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		out = append(out, it)
	}
	return out
}
