package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicare/casemgr/internal/schema"
)

func TestFromRowLenient(t *testing.T) {
	var r Report
	err := FromRow(map[string]string{
		"report_id":      "R20260301120000",
		"patient_id":     "P001",
		"overall_score":  "not a number",
		"messages_count": "4.0",
		"symptoms":       "{broken",
		"alert_level":    "red",
		"alert_handled":  "N",
		"unknown_column": "ignored",
	}, &r)
	require.NoError(t, err)

	assert.Equal(t, "R20260301120000", r.ReportID)
	assert.Equal(t, 0.0, r.OverallScore)
	assert.Equal(t, 4, r.MessagesCount)
	assert.NotNil(t, r.Symptoms)
	assert.Empty(t, r.Symptoms)
	assert.True(t, r.Pending())
}

func TestFromRowTypedValues(t *testing.T) {
	var r Report
	require.NoError(t, FromRow(map[string]string{
		"overall_score": "7.5",
		"symptoms":      `{"pain":6,"fatigue":"mild"}`,
		"alert_level":   "yellow",
		"alert_handled": "Y",
	}, &r))
	assert.Equal(t, 7.5, r.OverallScore)
	assert.Equal(t, float64(6), r.Symptoms["pain"])
	assert.Equal(t, "mild", r.Symptoms["fatigue"])
	assert.False(t, r.Pending())

	var lab LabResult
	require.NoError(t, FromRow(map[string]string{"cea": "3.2", "wbc": "", "plt": "x"}, &lab))
	require.NotNil(t, lab.CEA)
	assert.Equal(t, 3.2, *lab.CEA)
	assert.Nil(t, lab.WBC)
	require.NotNil(t, lab.PLT)
	assert.Equal(t, 0.0, *lab.PLT)
}

func TestToRow(t *testing.T) {
	age := 61
	row, err := ToRow(&Patient{
		Name:   "Test",
		Phone:  "0912345678",
		Age:    &age,
		Status: PatientStatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Test", row["name"])
	assert.Equal(t, "61", row["age"])
	assert.Equal(t, "active", row["status"])
	_, hasNotes := row["notes"]
	assert.False(t, hasNotes, "blank strings are left for defaults")

	row, err = ToRow(&Report{PatientID: "P001", OverallScore: 8, Symptoms: map[string]interface{}{"pain": 8}})
	require.NoError(t, err)
	assert.Equal(t, "8", row["overall_score"])
	assert.JSONEq(t, `{"pain":8}`, row["symptoms"])
}

func TestDecodeEveryTable(t *testing.T) {
	for _, table := range schema.All() {
		rec, err := Decode(table.Name, map[string]string{table.IDColumn: "X1"})
		require.NoError(t, err, table.Name)
		assert.Equal(t, table.Name, rec.TableName())

		row, err := ToRow(rec)
		require.NoError(t, err)
		assert.Equal(t, "X1", row[table.IDColumn])
		for col := range row {
			assert.True(t, table.Has(col), "%s.%s", table.Name, col)
		}
	}

	_, err := New("Nope")
	assert.Error(t, err)
}

func TestPatientStatus(t *testing.T) {
	assert.True(t, PatientStatusDischarged.Closed())
	assert.True(t, PatientStatusCompleted.Closed())
	assert.False(t, PatientStatusActive.Closed())
	assert.True(t, PatientStatusNormal.Valid())
	assert.False(t, PatientStatusHospitalized.Valid())
}
