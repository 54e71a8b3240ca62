package mute

// Preferred returns the baseline group used for reading state: the first
// writable group, else the first readable one.
func (t Targets) Preferred() (TargetGroup, bool) {
	return preferredGroup(t.Writable, t.Readable)
}

// Candidates returns the groups to try, in order, when writing.
func (t Targets) Candidates() []TargetGroup {
	preferred, ok := t.Preferred()
	if !ok {
		return nil
	}
	return orderedCandidates(t.Writable, preferred)
}

func preferredGroup(writable, readable []TargetGroup) (TargetGroup, bool) {
	if len(writable) > 0 {
		return writable[0], true
	}
	if len(readable) > 0 {
		return readable[0], true
	}
	return TargetGroup{}, false
}

// orderedCandidates puts preferred first, followed by the remaining writable
// groups in discovery order. A preferred group that is not writable is left
// out.
func orderedCandidates(writable []TargetGroup, preferred TargetGroup) []TargetGroup {
	out := make([]TargetGroup, 0, len(writable))
	pk := preferred.Key()
	for _, g := range writable {
		if g.Key() == pk {
			out = append(out, g)
			break
		}
	}
	for _, g := range writable {
		if g.Key() != pk {
			out = append(out, g)
		}
	}
	return out
}
