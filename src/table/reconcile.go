package table

// ReconcileHeader returns the header needed to hold both the existing columns and every key
// of the incoming rows. New keys are appended after the existing ones in first-seen order.
// rewrite is true when the header grew, meaning rows already on disk must be re-rendered.
func ReconcileHeader(existing []string, incoming []Row) (header []string, rewrite bool) {
	header = append([]string(nil), existing...)
	seen := make(map[string]struct{}, len(existing))
	for _, col := range existing {
		seen[col] = struct{}{}
	}
	for _, row := range incoming {
		for _, key := range row.keys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			header = append(header, key)
		}
	}
	return header, len(header) != len(existing)
}
