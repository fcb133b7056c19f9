package catalog

import "strings"

// Match returns the first procedure, in slice order, with a trigger phrase
// contained in message (case-insensitive). First match wins; there is no
// scoring. Returns nil when nothing matches.
func Match(message string, procs []*Procedure) *Procedure {
	lower := strings.ToLower(message)
	if strings.TrimSpace(lower) == "" {
		return nil
	}
	for _, p := range procs {
		for _, phrase := range p.Triggers {
			if phrase == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(phrase)) {
				return p
			}
		}
	}
	return nil
}
