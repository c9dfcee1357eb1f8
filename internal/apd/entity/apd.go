package entity

// StatusDraft is the status of a newly created APD.
const StatusDraft = "draft"

// APD is an Advance Planning Document owned by one state.
type APD struct {
	ID      int64    `json:"id"`
	StateID string   `json:"state"`
	Status  string   `json:"status"`
	Years   []string `json:"years"`

	Activities   []*Activity  `json:"activities,omitempty"`
	KeyPersonnel []*KeyPerson `json:"keyPersonnel,omitempty"`
}

// HasYear reports whether year is one of the APD's federal fiscal years.
func (a *APD) HasYear(year string) bool {
	for _, y := range a.Years {
		if y == year {
			return true
		}
	}
	return false
}

// Activity is a program activity within an APD.
type Activity struct {
	ID          int64  `json:"id"`
	APDID       int64  `json:"apd"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Summary     string `json:"summary"`

	Goals      []*Goal     `json:"goals"`
	Approaches []*Approach `json:"approaches"`
}

// Goal belongs to one activity and carries its objectives.
type Goal struct {
	ID          int64        `json:"id"`
	Description string       `json:"description"`
	Objectives  []*Objective `json:"objectives"`
}

type Objective struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
}

// Approach is an alternative considered for an activity.
type Approach struct {
	ID           int64  `json:"id"`
	Description  string `json:"description"`
	Alternatives string `json:"alternatives"`
	Explanation  string `json:"explanation"`
}

// Empty reports whether every text field is blank.
func (a Approach) Empty() bool {
	return a.Description == "" && a.Alternatives == "" && a.Explanation == ""
}

// KeyPerson is a state point of contact listed on an APD. Costs is keyed
// by federal fiscal year.
type KeyPerson struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Position    string             `json:"position"`
	PercentTime float64            `json:"percentTime"`
	HasCosts    bool               `json:"hasCosts"`
	Costs       map[string]float64 `json:"costs"`
}
