package session

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

var (
	testTherapist = uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")
	otherUser     = uuid.MustParse("9e107d9d-372b-4611-b1f5-41ff22e7b6a1")
)

func entry(role ParticipantRole) RosterEntry {
	return RosterEntry{UserID: uuid.New(), Role: role}
}

func therapistEntry() RosterEntry {
	return RosterEntry{UserID: testTherapist, Role: RoleTherapist}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		sessionType SessionType
		roster      []RosterEntry
		wantErr     bool
	}{
		{
			name:        "individual therapist and client",
			sessionType: TypeIndividual,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient)},
		},
		{
			name:        "individual therapist only",
			sessionType: TypeIndividual,
			roster:      []RosterEntry{therapistEntry()},
		},
		{
			name:        "individual with observer",
			sessionType: TypeIndividual,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient), entry(RoleObserver)},
		},
		{
			name:        "individual two clients",
			sessionType: TypeIndividual,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient), entry(RoleClient)},
			wantErr:     true,
		},
		{
			name:        "individual with guardian",
			sessionType: TypeIndividual,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient), entry(RoleGuardian)},
			wantErr:     true,
		},
		{
			name:        "individual without therapist",
			sessionType: TypeIndividual,
			roster:      []RosterEntry{entry(RoleClient)},
			wantErr:     true,
		},
		{
			name:        "family complete",
			sessionType: TypeFamily,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient), entry(RoleGuardian)},
		},
		{
			name:        "family with observer",
			sessionType: TypeFamily,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient), entry(RoleGuardian), entry(RoleObserver)},
		},
		{
			name:        "family missing guardian",
			sessionType: TypeFamily,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient)},
			wantErr:     true,
		},
		{
			name:        "family two clients",
			sessionType: TypeFamily,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient), entry(RoleClient), entry(RoleGuardian)},
			wantErr:     true,
		},
		{
			name:        "group three clients",
			sessionType: TypeGroup,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient), entry(RoleClient), entry(RoleClient)},
		},
		{
			name:        "group one client",
			sessionType: TypeGroup,
			roster:      []RosterEntry{therapistEntry(), entry(RoleClient)},
			wantErr:     true,
		},
		{
			name:        "group without therapist",
			sessionType: TypeGroup,
			roster:      []RosterEntry{entry(RoleClient), entry(RoleClient)},
			wantErr:     true,
		},
		{
			name:        "consultation therapist and guardian",
			sessionType: TypeConsultation,
			roster:      []RosterEntry{therapistEntry(), entry(RoleGuardian)},
		},
		{
			name:        "consultation guardian and observer",
			sessionType: TypeConsultation,
			roster:      []RosterEntry{entry(RoleGuardian), entry(RoleObserver)},
		},
		{
			name:        "consultation single participant",
			sessionType: TypeConsultation,
			roster:      []RosterEntry{therapistEntry()},
			wantErr:     true,
		},
		{
			name:        "consultation without organizer role",
			sessionType: TypeConsultation,
			roster:      []RosterEntry{entry(RoleClient), entry(RoleObserver)},
			wantErr:     true,
		},
		{
			name:        "empty roster",
			sessionType: TypeIndividual,
			roster:      nil,
			wantErr:     true,
		},
		{
			name:        "unknown session type",
			sessionType: SessionType("retreat"),
			roster:      []RosterEntry{therapistEntry()},
			wantErr:     true,
		},
		{
			name:        "unknown role",
			sessionType: TypeIndividual,
			roster:      []RosterEntry{therapistEntry(), {UserID: uuid.New(), Role: ParticipantRole("pet")}},
			wantErr:     true,
		},
	}

	validator := NewValidator(12)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.sessionType, testTherapist, tc.roster)
			if tc.wantErr {
				var ruleErr *RuleError
				if err == nil {
					t.Fatal("expected a rule violation, got nil")
				}
				if !errors.As(err, &ruleErr) {
					t.Fatalf("expected RuleError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected roster to be accepted, got %v", err)
			}
		})
	}
}

func TestValidate_DuplicateUser(t *testing.T) {
	dup := entry(RoleClient)
	err := NewValidator(12).Validate(TypeGroup, testTherapist, []RosterEntry{
		therapistEntry(), dup, dup,
	})
	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected RuleError for duplicate user, got %v", err)
	}
}

func TestValidate_TherapistMustMatchRecord(t *testing.T) {
	err := NewValidator(12).Validate(TypeIndividual, testTherapist, []RosterEntry{
		{UserID: otherUser, Role: RoleTherapist},
		entry(RoleClient),
	})
	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected RuleError for mismatched therapist, got %v", err)
	}
}

func TestValidate_RosterSizeCap(t *testing.T) {
	roster := []RosterEntry{therapistEntry()}
	for i := 0; i < 4; i++ {
		roster = append(roster, entry(RoleClient))
	}
	err := NewValidator(3).Validate(TypeGroup, testTherapist, roster)
	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected RuleError for oversized roster, got %v", err)
	}
}
