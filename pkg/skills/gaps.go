package skills

import "sort"

// FindGaps returns the normalized market skills the user does not have, sorted.
// Blank labels on either side are ignored.
func FindGaps(marketSkills, userSkills []string) []string {
	have := make(map[string]struct{}, len(userSkills))
	for _, s := range userSkills {
		if label := NormalizeLabel(s); label != "" {
			have[label] = struct{}{}
		}
	}

	missing := make(map[string]struct{})
	for _, s := range marketSkills {
		label := NormalizeLabel(s)
		if label == "" {
			continue
		}
		if _, ok := have[label]; !ok {
			missing[label] = struct{}{}
		}
	}

	gaps := make([]string, 0, len(missing))
	for label := range missing {
		gaps = append(gaps, label)
	}
	sort.Strings(gaps)
	return gaps
}
