package fixengine

import "github.com/abquickfix/fixengine/datadictionary"

// validateRequired walks fm against def's required-required AND composition
// (spec §4.2, §8): every tag def marks required must be present directly on
// fm, and every group instance present on fm is checked the same way
// against its own inner dictionary, recursively. This runs after structural
// group parsing succeeds (spec scenario 6): structural parsing only checks
// NumInGroup/delimiter/ordering invariants, not whether an individual
// required field was sent at all.
func validateRequired(fm *FieldMap, def *datadictionary.MessageDef) error {
	for t := range def.Required {
		if !fm.Has(t) {
			return requiredTagMissing(int(t))
		}
	}
	for t, gi := range def.Groups {
		group, ok := fm.GetGroup(t)
		if !ok {
			continue // absence of an optional group is fine; required absence was already caught above
		}
		for _, instance := range group.Instances {
			if err := validateRequired(instance, gi.Inner); err != nil {
				return err
			}
		}
	}
	return nil
}
