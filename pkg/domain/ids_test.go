package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "reliefops/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseShelterID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseShelterID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseShelterID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseShelterID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ShelterID(validUUID), id)
	})
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE shelters;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400\u200B-e29b-41d4-a716-446655440000", true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRescueOperationID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types share one validation path.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	parsers := map[string]func(string) error{
		"user":         func(s string) error { _, err := ParseUserID(s); return err },
		"organization": func(s string) error { _, err := ParseOrganizationID(s); return err },
		"shelter":      func(s string) error { _, err := ParseShelterID(s); return err },
		"person":       func(s string) error { _, err := ParsePersonID(s); return err },
		"family":       func(s string) error { _, err := ParseFamilyGroupID(s); return err },
		"flood_zone":   func(s string) error { _, err := ParseFloodZoneID(s); return err },
		"rescue":       func(s string) error { _, err := ParseRescueOperationID(s); return err },
		"call":         func(s string) error { _, err := ParseEmergencyCallID(s); return err },
	}

	valid := uuid.NewString()
	for name, parse := range parsers {
		assert.NoError(t, parse(valid), name)
		for _, bad := range []string{"", "invalid", uuid.Nil.String()} {
			assert.Error(t, parse(bad), "%s should reject %q", name, bad)
		}
	}
}

func TestIDJSONRoundTrip(t *testing.T) {
	type payload struct {
		ShelterID ShelterID  `json:"shelter_id"`
		Origin    *ShelterID `json:"origin,omitempty"`
	}
	id := ShelterID(uuid.New())
	b, err := json.Marshal(payload{ShelterID: id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"shelter_id":"`+id.String()+`"}`, string(b))

	var decoded payload
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, id, decoded.ShelterID)

	err = json.Unmarshal([]byte(`{"shelter_id":"nope"}`), &decoded)
	assert.Error(t, err)
}
