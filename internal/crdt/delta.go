package crdt

// Apply replays the delta's operations onto model, in order. It is a
// convenience for callers that received a Delta (e.g. over a driver's
// send channel) and need to bring a stale replica up to date without
// hand-rolling the loop. Use ModelChange when model is the original
// "this" replica from the Merge call, OtherChange when model is the
// original "other" replica.
func (d *Delta) Apply(model Model, side []Operation) error {
	for _, op := range side {
		if _, err := model.ApplyOperation(op); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether neither side of the delta carries any
// operations, i.e. the merge was a no-op because both replicas already
// agreed.
func (d *Delta) IsEmpty() bool {
	return d == nil || (len(d.ModelChange) == 0 && len(d.OtherChange) == 0)
}
