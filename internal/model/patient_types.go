package model

type PatientFilters struct {
	Status     PatientStatus `form:"status"`
	SearchTerm string        `form:"q"`
	// ActiveOnly hides discharged and completed patients.
	ActiveOnly bool `form:"active_only"`
}

type RecordFilters struct {
	PatientID string `form:"patient_id"`
	Date      string `form:"date" binding:"omitempty,datefield"`
	Status    string `form:"status"`
}
