package routes

// RouteGroup is every train running between the two stations of Key, in the
// order they appeared in the source table.
type RouteGroup struct {
	Key    RouteKey
	Trains []TrainRecord
}

// Filename returns the page filename of the group.
func (g RouteGroup) Filename() string {
	return g.Key.Filename()
}

// Group buckets records by undirected route. Groups are returned in the order
// their key first appears in records, and records keep their relative order
// inside a group.
func Group(records []TrainRecord) []RouteGroup {
	index := make(map[RouteKey]int)
	var groups []RouteGroup

	for _, record := range records {
		key := record.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, RouteGroup{Key: key})
		}
		groups[i].Trains = append(groups[i].Trains, record)
	}
	return groups
}
