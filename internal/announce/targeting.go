// Package announce holds the pure pieces of the announcement distribution
// engine: recipient targeting and active-window relevance. Everything here is
// a deterministic function of its inputs so the send pipeline can be reasoned
// about and tested without a database.
package announce

import "github.com/cheezious/it-support/internal/domain"

// Resolve computes the concrete recipient set for a targeting rule against a
// directory snapshot.
//
// An explicit user list takes hard precedence: the result is exactly
// rule.Users intersected with the directory (unknown ids silently dropped)
// and roles/regions are ignored. Otherwise role and region selectors act as
// independent filters ANDed together, and a rule empty on all three selects
// the whole directory. Output order follows the input that drives it
// (rule.Users order, else directory order) with duplicates removed.
func Resolve(rule domain.TargetRule, directory []domain.User) []string {
	if len(rule.Users) > 0 {
		return resolveExplicit(rule.Users, directory)
	}

	roleSet := make(map[domain.Role]struct{}, len(rule.Roles))
	for _, role := range rule.Roles {
		roleSet[role] = struct{}{}
	}
	regionSet := make(map[string]struct{}, len(rule.Regions))
	for _, region := range rule.Regions {
		regionSet[region] = struct{}{}
	}

	seen := make(map[string]struct{}, len(directory))
	var result []string
	for i := range directory {
		entry := &directory[i]
		if len(roleSet) > 0 {
			if _, ok := roleSet[entry.Role]; !ok {
				continue
			}
		}
		if len(regionSet) > 0 && !regionsIntersect(entry.EffectiveRegions(), regionSet) {
			continue
		}
		if _, dup := seen[entry.ID]; dup {
			continue
		}
		seen[entry.ID] = struct{}{}
		result = append(result, entry.ID)
	}
	return result
}

func resolveExplicit(uids []string, directory []domain.User) []string {
	known := make(map[string]struct{}, len(directory))
	for i := range directory {
		known[directory[i].ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(uids))
	var result []string
	for _, uid := range uids {
		if _, ok := known[uid]; !ok {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		result = append(result, uid)
	}
	return result
}

func regionsIntersect(regions []string, want map[string]struct{}) bool {
	for _, region := range regions {
		if _, ok := want[region]; ok {
			return true
		}
	}
	return false
}
