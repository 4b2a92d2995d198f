package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		callType     string
		wantCategory string
		wantPriority int
	}{
		{
			name:         "violent: robbery in progress",
			callType:     "ROBBERY IN PROGRESS",
			wantCategory: CategoryViolent,
			wantPriority: 10,
		},
		{
			name:         "violent: shots fired",
			callType:     "Shots Fired",
			wantCategory: CategoryViolent,
			wantPriority: 10,
		},
		{
			name:         "weapons: brandishing",
			callType:     "BRANDISHING A KNIFE",
			wantCategory: CategoryWeapons,
			wantPriority: 20,
		},
		{
			name:         "property: vehicle theft",
			callType:     "VEHICLE THEFT REPORT",
			wantCategory: CategoryProperty,
			wantPriority: 30,
		},
		{
			name:         "traffic: non-injury collision",
			callType:     "TRAFFIC COLLISION NON-INJURY",
			wantCategory: CategoryTraffic,
			wantPriority: 40,
		},
		{
			name:         "disturbance: loud noise",
			callType:     "NOISE COMPLAINT",
			wantCategory: CategoryDisturbance,
			wantPriority: 50,
		},
		{
			name:         "drug: narcotics activity",
			callType:     "NARCOTIC ACTIVITY",
			wantCategory: CategoryDrug,
			wantPriority: 60,
		},
		{
			name:         "medical: overdose",
			callType:     "OVERDOSE",
			wantCategory: CategoryMedical,
			wantPriority: 70,
		},
		{
			name:         "admin: vehicle stop",
			callType:     "VEHICLE STOP",
			wantCategory: CategoryAdmin,
			wantPriority: 90,
		},
		{
			name:         "other: unrecognized text",
			callType:     "UNKNOWN NONSENSE",
			wantCategory: CategoryOther,
			wantPriority: 80,
		},
		{
			name:         "other: empty string",
			callType:     "",
			wantCategory: CategoryOther,
			wantPriority: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, priority := Classify(tt.callType)
			assert.Equal(t, tt.wantCategory, category)
			assert.Equal(t, tt.wantPriority, priority)
		})
	}
}

// A call type matching two rules must resolve via the earlier rule.
func TestClassify_FirstMatchWins(t *testing.T) {
	// "assault with a deadly weapon" also contains the weapons term "weapon",
	// but the violent rule is checked first.
	category, priority := Classify("ASSAULT WITH A DEADLY WEAPON")
	assert.Equal(t, CategoryViolent, category)
	assert.Equal(t, 10, priority)

	// Weapons term plus traffic term: weapons is checked before traffic.
	category, priority = Classify("ARMED SUBJECT CAUSING TRAFFIC COLLISION")
	assert.Equal(t, CategoryWeapons, category)
	assert.Equal(t, 20, priority)
}

// Repeated calls with the same input always return identical output.
func TestClassify_Deterministic(t *testing.T) {
	for range 5 {
		category, priority := Classify("HIT AND RUN")
		assert.Equal(t, CategoryTraffic, category)
		assert.Equal(t, 40, priority)
	}
}

// Word boundaries: substrings inside larger words don't match.
func TestClassify_WordBoundary(t *testing.T) {
	// "gunston" contains "gun" but not on a word boundary.
	category, _ := Classify("SUSPICIOUS PERSON ON GUNSTON RD")
	assert.Equal(t, CategoryOther, category)
}
