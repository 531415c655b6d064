package session

import (
	"fmt"

	"github.com/google/uuid"
)

// RuleError reports which roster rule a proposed session composition violates.
// The message is safe to surface to the end user as-is.
type RuleError struct {
	Rule string
}

func (e *RuleError) Error() string {
	return e.Rule
}

func ruleErrorf(format string, args ...any) error {
	return &RuleError{Rule: fmt.Sprintf(format, args...)}
}

// Validator enforces the per-session-type role and cardinality rules. It is
// stateless and safe for concurrent use.
type Validator struct {
	MaxRosterSize int
}

func NewValidator(maxRosterSize int) Validator {
	return Validator{MaxRosterSize: maxRosterSize}
}

// Validate checks the proposed roster against the rules of sessionType.
// Consultation is deliberately looser than the other types: it needs a
// plausible organizer (therapist or guardian role) and at least one other
// participant, nothing more.
func (v Validator) Validate(sessionType SessionType, therapistID uuid.UUID, roster []RosterEntry) error {
	if !sessionType.Valid() {
		return ruleErrorf("unknown session type %q", sessionType)
	}
	if len(roster) == 0 {
		return ruleErrorf("roster must not be empty")
	}
	if v.MaxRosterSize > 0 && len(roster) > v.MaxRosterSize {
		return ruleErrorf("roster exceeds maximum size of %d", v.MaxRosterSize)
	}

	seen := make(map[uuid.UUID]bool, len(roster))
	counts := make(map[ParticipantRole]int)
	var therapistEntry *RosterEntry

	for i := range roster {
		entry := roster[i]
		if !entry.Role.Valid() {
			return ruleErrorf("unknown role %q", entry.Role)
		}
		if seen[entry.UserID] {
			return ruleErrorf("user %s appears in the roster more than once", entry.UserID)
		}
		seen[entry.UserID] = true
		counts[entry.Role]++

		if entry.Role == RoleTherapist {
			if therapistEntry != nil {
				return ruleErrorf("roster must contain exactly one therapist")
			}
			therapistEntry = &entry
		}
	}

	if therapistEntry != nil && therapistEntry.UserID != therapistID {
		return ruleErrorf("therapist participant must be the therapist of record")
	}

	switch sessionType {
	case TypeIndividual:
		if counts[RoleTherapist] != 1 {
			return ruleErrorf("individual sessions require exactly one therapist")
		}
		if counts[RoleClient] > 1 {
			return ruleErrorf("individual sessions allow at most one client")
		}
		if counts[RoleGuardian] > 0 {
			return ruleErrorf("individual sessions do not include guardians")
		}

	case TypeFamily:
		if counts[RoleTherapist] != 1 {
			return ruleErrorf("family sessions require exactly one therapist")
		}
		if counts[RoleClient] != 1 {
			return ruleErrorf("family sessions require exactly one client")
		}
		if counts[RoleGuardian] != 1 {
			return ruleErrorf("family sessions require exactly one guardian")
		}

	case TypeGroup:
		if counts[RoleTherapist] != 1 {
			return ruleErrorf("group sessions require exactly one therapist")
		}
		if counts[RoleClient] < 2 {
			return ruleErrorf("group sessions require at least 2 clients")
		}

	case TypeConsultation:
		if len(roster) < 2 {
			return ruleErrorf("consultations require an organizer plus at least one other participant")
		}
		if counts[RoleTherapist]+counts[RoleGuardian] == 0 {
			return ruleErrorf("consultations require an organizer with a therapist or guardian role")
		}
	}

	return nil
}
