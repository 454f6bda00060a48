package roster

// Gender is the patient's gender as printed in the roster's gender/age column.
// The zero value means the column did not carry a recognisable gender.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
)

// Ptr returns nil for an unknown gender so that it serialises as null.
func (g Gender) Ptr() *string {
	if g == GenderUnknown {
		return nil
	}
	s := string(g)
	return &s
}

// Record is one accepted roster row.
//
// Only ExternalID, Name, Room, Gender and PhysicianName take part in
// reconciliation. The remaining columns are carried through for display.
type Record struct {
	Line int // 1-based sheet row, header included

	Seq           int
	Room          string
	ExternalID    string
	Name          string
	Gender        Gender
	Age           int
	Insurance     string
	AdmissionDate string
	LengthOfStay  int
	Department    string
	PhysicianName string
	SurgeryDate   string
	Diagnosis     string
	Procedure     string
}

// RowOutcome is the tagged result of parsing a single data row.
type RowOutcome struct {
	Line     int
	Record   Record
	Rejected bool
	Reason   string
}

// Result holds every accepted record in sheet order along with the rows
// that were rejected structurally. Rejected rows never reach reconciliation.
type Result struct {
	Sheet    string
	Records  []Record
	Rejected []RowOutcome
}
