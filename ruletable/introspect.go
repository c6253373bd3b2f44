package ruletable

// CallTargets returns the distinct `call "<name>"` targets a parsed table's
// handlers declare, in file order, deduplicated — a host that wants to
// build the calls map Build needs without hand-walking the grammar itself
// (cmd/ifthenctl uses this to wire a default logging handler onto every
// declared target).
func CallTargets(tbl *Table) []string {
	seen := make(map[string]bool)
	var names []string
	for _, chunk := range tbl.Chunks {
		for _, item := range chunk.Items {
			if item.Handler == nil {
				continue
			}
			name := unquote(item.Handler.Call)
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
